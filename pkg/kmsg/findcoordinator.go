package kmsg

import "github.com/brokercore/kpro/pkg/kbin"

// FindCoordinatorKey is the protocol API key for FindCoordinator
// requests.
const FindCoordinatorKey = 10

// Coordinator type discriminants, as carried on the wire from version
// 1 onward. Version 0 only ever means CoordinatorTypeGroup.
const (
	CoordinatorTypeGroup       int8 = 0
	CoordinatorTypeTransaction int8 = 1
)

// FindCoordinatorRequest asks for the group or transaction coordinator
// for a given key. At version 0 only group coordinators can be
// requested and CoordinatorType is ignored on the wire.
type FindCoordinatorRequest struct {
	Version         int16
	CoordinatorKey  string
	CoordinatorType int8
}

func (*FindCoordinatorRequest) Key() int16           { return FindCoordinatorKey }
func (r *FindCoordinatorRequest) GetVersion() int16  { return r.Version }
func (r *FindCoordinatorRequest) SetVersion(v int16) { r.Version = v }
func (*FindCoordinatorRequest) IsFlexible() bool     { return false }
func (r *FindCoordinatorRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendString(dst, r.CoordinatorKey)
	if r.Version >= 1 {
		dst = append(dst, byte(r.CoordinatorType))
	}
	return dst
}
func (*FindCoordinatorRequest) ResponseKind() Response { return &FindCoordinatorResponse{} }

// FindCoordinatorResponse names the host and port of the resolved
// coordinator, or an error if the key could not be resolved.
type FindCoordinatorResponse struct {
	Version      int16
	ErrorCode    int16
	ErrorMessage *string // only set at version 1+
	NodeID       int32
	Host         string
	Port         int32
}

func (*FindCoordinatorResponse) Key() int16           { return FindCoordinatorKey }
func (r *FindCoordinatorResponse) GetVersion() int16  { return r.Version }
func (r *FindCoordinatorResponse) SetVersion(v int16) { r.Version = v }

func (r *FindCoordinatorResponse) ReadFrom(src []byte) error {
	b := kbin.Reader{Src: src}
	r.ErrorCode = b.Int16()
	if r.Version >= 1 {
		r.ErrorMessage = b.NullableString()
	}
	r.NodeID = b.Int32()
	r.Host = b.String()
	r.Port = b.Int32()
	return b.Complete()
}
