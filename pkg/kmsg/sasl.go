package kmsg

import "github.com/brokercore/kpro/pkg/kbin"

// SASLHandshakeKey is the protocol API key for SASLHandshake requests.
const SASLHandshakeKey = 17

// SASLHandshakeRequest announces the SASL mechanism the client intends
// to authenticate with.
type SASLHandshakeRequest struct {
	Version   int16
	Mechanism string
}

func (*SASLHandshakeRequest) Key() int16            { return SASLHandshakeKey }
func (r *SASLHandshakeRequest) GetVersion() int16   { return r.Version }
func (r *SASLHandshakeRequest) SetVersion(v int16)  { r.Version = v }
func (*SASLHandshakeRequest) IsFlexible() bool      { return false }
func (r *SASLHandshakeRequest) AppendTo(dst []byte) []byte {
	return kbin.AppendString(dst, r.Mechanism)
}
func (*SASLHandshakeRequest) ResponseKind() Response { return &SASLHandshakeResponse{} }

// SASLHandshakeResponse reports whether the requested mechanism is
// supported, and if not, which ones are.
type SASLHandshakeResponse struct {
	Version             int16
	ErrorCode           int16
	SupportedMechanisms []string
}

func (*SASLHandshakeResponse) Key() int16           { return SASLHandshakeKey }
func (r *SASLHandshakeResponse) GetVersion() int16  { return r.Version }
func (r *SASLHandshakeResponse) SetVersion(v int16) { r.Version = v }

func (r *SASLHandshakeResponse) ReadFrom(src []byte) error {
	b := kbin.Reader{Src: src}
	r.ErrorCode = b.Int16()
	for n := b.ArrayLen(); n > 0; n-- {
		r.SupportedMechanisms = append(r.SupportedMechanisms, b.String())
	}
	return b.Complete()
}

// SASLAuthenticateKey is the protocol API key for SASLAuthenticate
// requests, used only when the negotiated SASLHandshake version is 1.
const SASLAuthenticateKey = 36

// SASLAuthenticateRequest carries one opaque round of SASL token
// exchange, wrapped in the standard Kafka request/response framing
// rather than a raw length-prefixed frame (see runSASLPlain in package
// kgo for the unwrapped v0 form).
type SASLAuthenticateRequest struct {
	Version       int16
	SASLAuthBytes []byte
}

func (*SASLAuthenticateRequest) Key() int16           { return SASLAuthenticateKey }
func (r *SASLAuthenticateRequest) GetVersion() int16  { return r.Version }
func (r *SASLAuthenticateRequest) SetVersion(v int16) { r.Version = v }
func (*SASLAuthenticateRequest) IsFlexible() bool     { return false }
func (r *SASLAuthenticateRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendInt32(dst, int32(len(r.SASLAuthBytes)))
	return append(dst, r.SASLAuthBytes...)
}
func (*SASLAuthenticateRequest) ResponseKind() Response { return &SASLAuthenticateResponse{} }

// SASLAuthenticateResponse carries the broker's side of one round of
// SASL token exchange.
type SASLAuthenticateResponse struct {
	Version                int16
	ErrorCode              int16
	ErrorMessage           *string
	SASLAuthBytes          []byte
	SessionLifetimeMillis  int64
}

func (*SASLAuthenticateResponse) Key() int16           { return SASLAuthenticateKey }
func (r *SASLAuthenticateResponse) GetVersion() int16  { return r.Version }
func (r *SASLAuthenticateResponse) SetVersion(v int16) { r.Version = v }

func (r *SASLAuthenticateResponse) ReadFrom(src []byte) error {
	b := kbin.Reader{Src: src}
	r.ErrorCode = b.Int16()
	r.ErrorMessage = b.NullableString()
	n := int(b.Int32())
	if n > 0 {
		r.SASLAuthBytes = append([]byte(nil), b.Span(n)...)
	}
	r.SessionLifetimeMillis = b.Int64()
	return b.Complete()
}
