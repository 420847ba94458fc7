package kmsg

import "github.com/brokercore/kpro/pkg/kbin"

// ApiVersionsKey is the protocol API key for ApiVersions requests.
const ApiVersionsKey = 18

// ApiVersionsRequest asks a broker which (API key, min, max) version
// ranges it supports.
type ApiVersionsRequest struct {
	Version int16
}

func (*ApiVersionsRequest) Key() int16          { return ApiVersionsKey }
func (r *ApiVersionsRequest) GetVersion() int16 { return r.Version }
func (r *ApiVersionsRequest) SetVersion(v int16) { r.Version = v }
func (*ApiVersionsRequest) IsFlexible() bool    { return false }
func (*ApiVersionsRequest) AppendTo(dst []byte) []byte { return dst }
func (*ApiVersionsRequest) ResponseKind() Response { return &ApiVersionsResponse{} }

// ApiVersionKey is one (api, min, max) entry of an ApiVersionsResponse.
type ApiVersionKey struct {
	APIKey     int16
	MinVersion int16
	MaxVersion int16
}

// ApiVersionsResponse is a broker's reply enumerating every API it
// supports and the version range it accepts for each.
type ApiVersionsResponse struct {
	Version   int16
	ErrorCode int16
	ApiKeys   []ApiVersionKey
}

func (*ApiVersionsResponse) Key() int16           { return ApiVersionsKey }
func (r *ApiVersionsResponse) GetVersion() int16  { return r.Version }
func (r *ApiVersionsResponse) SetVersion(v int16) { r.Version = v }

func (r *ApiVersionsResponse) ReadFrom(src []byte) error {
	b := kbin.Reader{Src: src}
	r.ErrorCode = b.Int16()
	for n := b.ArrayLen(); n > 0; n-- {
		var k ApiVersionKey
		k.APIKey = b.Int16()
		k.MinVersion = b.Int16()
		k.MaxVersion = b.Int16()
		r.ApiKeys = append(r.ApiKeys, k)
	}
	return b.Complete()
}
