package ndfc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Result is the outcome of one rule. Reason explains a failure, or notes
// something worth knowing about a value that passed.
type Result struct {
	Field  string `json:"field,omitempty"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func pass(field string) Result {
	return Result{Field: field, OK: true}
}

func fail(field, format string, args ...interface{}) Result {
	return Result{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Accepted values for the envelope
var (
	SuccessCodes       = []int{200, 201, 202}
	RequiredMethod     = "GET"
	RequestPathPattern = "/vrfs/attachments"
)

var (
	knownStates = map[string]bool{
		StateInProgress: true, StateDeployed: true, StateFailed: true, StateNA: true, StatePending: true,
	}
	knownRoles = map[string]bool{
		RoleBorderSpine: true, RoleSpine: true, RoleLeaf: true, RoleBorderLeaf: true, RoleSuperSpine: true,
	}
)

// The presence model mirrors Response with pointers, so a missing key and
// a zero value can be told apart.
type responseFields struct {
	Data        []vrfFields `json:"DATA" validate:"required,dive"`
	Message     *string     `json:"MESSAGE" validate:"required"`
	Method      *string     `json:"METHOD" validate:"required"`
	RequestPath *string     `json:"REQUEST_PATH" validate:"required"`
	ReturnCode  *int        `json:"RETURN_CODE" validate:"required"`
}

type vrfFields struct {
	LanAttachList []attachmentFields `json:"lanAttachList" validate:"required,dive"`
	VrfName       *string            `json:"vrfName" validate:"required"`
}

type attachmentFields struct {
	FabricName     *string `json:"fabricName" validate:"required"`
	IPAddress      *string `json:"ipAddress" validate:"required"`
	IsLanAttached  *bool   `json:"isLanAttached" validate:"required"`
	LanAttachState *string `json:"lanAttachState" validate:"required"`
	SwitchName     *string `json:"switchName" validate:"required"`
	SwitchRole     *string `json:"switchRole" validate:"required"`
	SwitchSerialNo *string `json:"switchSerialNo" validate:"required"`
	VrfID          *int    `json:"vrfId" validate:"required"`
	VrfName        *string `json:"vrfName" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequired checks that every required key is present and not null
func ValidateRequired(data []byte) Result {
	var fields responseFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return fail("", "malformed response: %s", err)
	}

	err := validate.Struct(fields)
	if err == nil {
		return pass("")
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fail("", "%s", err)
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fieldPath(fe.Namespace()))
	}
	return fail("", "missing required fields: %s", strings.Join(missing, ", "))
}

// fieldPath drops the struct name validator puts in front of a namespace
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// ValidateInstanceValues accepts an absent or empty value; otherwise the
// value must be a JSON object whose keys have the InstanceValues types
func ValidateInstanceValues(raw *string) Result {
	const field = "instanceValues"
	if raw == nil || *raw == "" {
		return pass(field)
	}
	if _, err := parseInstanceValues(*raw); err != nil {
		return fail(field, "instanceValues must be valid JSON: %s", err)
	}
	return pass(field)
}

// ValidateLanAttachState always passes. An unrecognised state is noted in
// the reason.
func ValidateLanAttachState(state string) Result {
	r := pass("lanAttachState")
	if !knownStates[state] {
		r.Reason = fmt.Sprintf("unrecognised value accepted: %q", state)
	}
	return r
}

// ValidateSwitchRole always passes. An unrecognised role is noted in the
// reason.
func ValidateSwitchRole(role string) Result {
	r := pass("switchRole")
	if !knownRoles[role] {
		r.Reason = fmt.Sprintf("unrecognised value accepted: %q", role)
	}
	return r
}

// ValidateLanAttachList requires at least one attachment
func ValidateLanAttachList(list []LanAttachment) Result {
	if len(list) == 0 {
		return fail("lanAttachList", "lanAttachList cannot be empty")
	}
	return pass("lanAttachList")
}

// ValidateMethod requires the GET method
func ValidateMethod(method string) Result {
	if method != RequiredMethod {
		return fail("METHOD", "METHOD must be '%s' for VRF attachments query", RequiredMethod)
	}
	return pass("METHOD")
}

// ValidateReturnCode requires a success code
func ValidateReturnCode(code int) Result {
	for _, ok := range SuccessCodes {
		if code == ok {
			return pass("RETURN_CODE")
		}
	}
	return fail("RETURN_CODE", "RETURN_CODE indicates failure: %d", code)
}

// ValidateRequestPath requires a VRF attachments endpoint path
func ValidateRequestPath(path string) Result {
	if !strings.Contains(path, RequestPathPattern) {
		return fail("REQUEST_PATH", "REQUEST_PATH must contain '%s'", RequestPathPattern)
	}
	return pass("REQUEST_PATH")
}
