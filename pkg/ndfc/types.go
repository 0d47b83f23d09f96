package ndfc

import (
	"encoding/json"
	"fmt"

	"github.com/ndtools/mcp-client/pkg/errors"
)

// Known attachment states
const (
	StateInProgress = "IN PROGRESS"
	StateDeployed   = "DEPLOYED"
	StateFailed     = "FAILED"
	StateNA         = "NA"
	StatePending    = "PENDING"
)

// Known switch roles
const (
	RoleBorderSpine = "border spine"
	RoleSpine       = "spine"
	RoleLeaf        = "leaf"
	RoleBorderLeaf  = "border leaf"
	RoleSuperSpine  = "super spine"
)

// Response is the VRF attachments response envelope
type Response struct {
	Data        []VrfData `json:"DATA"`
	Message     string    `json:"MESSAGE"`
	Method      string    `json:"METHOD"`
	RequestPath string    `json:"REQUEST_PATH"`
	ReturnCode  int       `json:"RETURN_CODE"`
}

// VrfData lists the attachments of one VRF
type VrfData struct {
	LanAttachList []LanAttachment `json:"lanAttachList"`
	VrfName       string          `json:"vrfName"`
}

// LanAttachment is the attachment of a VRF to one switch
type LanAttachment struct {
	EntityName     *string `json:"entityName,omitempty"`
	FabricName     string  `json:"fabricName"`
	InstanceValues *string `json:"instanceValues,omitempty"`
	IPAddress      string  `json:"ipAddress"`
	IsLanAttached  bool    `json:"isLanAttached"`
	LanAttachState string  `json:"lanAttachState"`
	PeerSerialNo   *string `json:"peerSerialNo,omitempty"`
	SwitchName     string  `json:"switchName"`
	SwitchRole     string  `json:"switchRole"`
	SwitchSerialNo string  `json:"switchSerialNo"`
	VlanID         *int    `json:"vlanId,omitempty"`
	VrfID          int     `json:"vrfId"`
	VrfName        string  `json:"vrfName"`
}

// InstanceValues is the JSON object carried as a string in instanceValues
type InstanceValues struct {
	LoopbackIPv6Address         string `json:"loopbackIpV6Address"`
	LoopbackID                  string `json:"loopbackId"`
	DeviceSupportL3VniNoVlan    string `json:"deviceSupportL3VniNoVlan"`
	SwitchRouteTargetImportEvpn string `json:"switchRouteTargetImportEvpn"`
	LoopbackIPAddress           string `json:"loopbackIpAddress"`
	SwitchRouteTargetExportEvpn string `json:"switchRouteTargetExportEvpn"`
}

// DefaultInstanceValues returns the values assumed for absent keys
func DefaultInstanceValues() InstanceValues {
	return InstanceValues{DeviceSupportL3VniNoVlan: "false"}
}

// Decode parses a response document. Only malformed JSON and mistyped
// fields fail here; the field rules are checked by ValidateResponse.
func Decode(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.WrapError(err, errors.CodeParseError,
			fmt.Sprintf("Malformed VRF attachments response: %s", err.Error()),
			errors.CategoryProtocol, errors.SeverityError)
	}
	return &resp, nil
}

// VrfByName returns the first entry for the named VRF
func (r *Response) VrfByName(name string) (*VrfData, bool) {
	for i := range r.Data {
		if r.Data[i].VrfName == name {
			return &r.Data[i], true
		}
	}
	return nil, false
}

// AttachedSwitches returns the attachments with isLanAttached set, limited
// to one VRF when vrf is not empty
func (r *Response) AttachedSwitches(vrf string) []LanAttachment {
	var attached []LanAttachment
	for _, data := range r.Data {
		if vrf != "" && data.VrfName != vrf {
			continue
		}
		for _, a := range data.LanAttachList {
			if a.IsLanAttached {
				attached = append(attached, a)
			}
		}
	}
	return attached
}

// SwitchesByRole returns the attachments whose switch has the given role
func (r *Response) SwitchesByRole(role string) []LanAttachment {
	var switches []LanAttachment
	for _, data := range r.Data {
		for _, a := range data.LanAttachList {
			if a.SwitchRole == role {
				switches = append(switches, a)
			}
		}
	}
	return switches
}

// InstanceValuesOf parses the attachment's instance values. It reports
// false when they are absent or not a valid object.
func InstanceValuesOf(a LanAttachment) (InstanceValues, bool) {
	if a.InstanceValues == nil || *a.InstanceValues == "" {
		return InstanceValues{}, false
	}
	values, err := parseInstanceValues(*a.InstanceValues)
	if err != nil {
		return InstanceValues{}, false
	}
	return values, true
}

func parseInstanceValues(raw string) (InstanceValues, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return InstanceValues{}, err
	}
	if fields == nil {
		return InstanceValues{}, fmt.Errorf("not a JSON object")
	}
	values := DefaultInstanceValues()
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return InstanceValues{}, err
	}
	return values, nil
}
