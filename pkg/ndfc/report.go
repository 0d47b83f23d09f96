package ndfc

import (
	"fmt"
	"strings"
)

// Report collects the results of validating one document
type Report struct {
	Failures []Result `json:"failures"`
	Notes    []Result `json:"notes,omitempty"`
}

// OK reports whether every rule held
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

func (r *Report) add(field string, res Result) {
	if res.Field == "" {
		res.Field = field
	} else if field != "" {
		res.Field = field + "." + res.Field
	}
	switch {
	case !res.OK:
		r.Failures = append(r.Failures, res)
	case res.Reason != "":
		r.Notes = append(r.Notes, res)
	}
}

// String renders one line per failure and note
func (r Report) String() string {
	if r.OK() && len(r.Notes) == 0 {
		return "valid"
	}
	var b strings.Builder
	if r.OK() {
		b.WriteString("valid\n")
	} else {
		fmt.Fprintf(&b, "invalid: %d failure(s)\n", len(r.Failures))
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "  FAIL %s\n", describe(f))
	}
	for _, n := range r.Notes {
		fmt.Fprintf(&b, "  NOTE %s\n", describe(n))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func describe(r Result) string {
	if r.Field == "" {
		return r.Reason
	}
	return r.Field + ": " + r.Reason
}

// ValidateResponse decodes data and runs every rule over it. The decoded
// response is returned when the JSON is well formed, even if rules fail.
// Value rules are skipped when required fields are missing.
func ValidateResponse(data []byte) (*Response, Report) {
	var report Report

	resp, err := Decode(data)
	if err != nil {
		report.add("", fail("", "%s", err))
		return nil, report
	}

	if res := ValidateRequired(data); !res.OK {
		report.add("", res)
		return resp, report
	}

	report.add("", ValidateMethod(resp.Method))
	report.add("", ValidateReturnCode(resp.ReturnCode))
	report.add("", ValidateRequestPath(resp.RequestPath))
	for i, vrf := range resp.Data {
		vrfField := fmt.Sprintf("DATA[%d]", i)
		report.add(vrfField, ValidateLanAttachList(vrf.LanAttachList))
		for j, a := range vrf.LanAttachList {
			field := fmt.Sprintf("%s.lanAttachList[%d]", vrfField, j)
			report.add(field, ValidateInstanceValues(a.InstanceValues))
			report.add(field, ValidateLanAttachState(a.LanAttachState))
			report.add(field, ValidateSwitchRole(a.SwitchRole))
		}
	}
	return resp, report
}
