// Package ndfc models the Nexus Dashboard Fabric Controller response to a
// VRF attachments query:
//
//	GET /appcenter/cisco/ndfc/api/v1/lan-fabric/rest/top-down/fabrics/{fabric}/vrfs/attachments?vrf-names={names}
//
// Validation is a set of small predicates, each returning a Result that
// says whether the rule held and why not. ValidateResponse runs them all
// over a raw document and collects a Report. Attachment states and switch
// roles outside the known sets are accepted, since the controller adds new
// ones between releases.
package ndfc
