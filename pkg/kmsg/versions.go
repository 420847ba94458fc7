package kmsg

// VersionRange is an inclusive [Min, Max] range of supported API
// versions.
type VersionRange struct {
	Min, Max int16
}

// supported is this client's own supported version range per API —
// the "client-side" half of the intersection the version negotiator
// (kgo.versionRanges) performs against whatever a broker advertises.
var supported = map[int16]VersionRange{
	ApiVersionsKey:      {0, 3},
	SASLHandshakeKey:    {0, 1},
	SASLAuthenticateKey: {0, 2},
	MetadataKey:         {0, 9},
	FindCoordinatorKey:  {0, 3},
}

// kafka09 is the minimum version each API supported back when Kafka
// 0.9 brokers predate ApiVersions and never advertise a version map.
// Used as the fallback "(min, min)" range per spec.md §4.6.
var kafka09 = map[int16]int16{
	ApiVersionsKey:      0,
	SASLHandshakeKey:    0,
	SASLAuthenticateKey: 0,
	MetadataKey:         0,
	FindCoordinatorKey:  0,
}

// AllAPIs returns every API key this client knows about.
func AllAPIs() []int16 {
	ks := make([]int16, 0, len(supported))
	for k := range supported {
		ks = append(ks, k)
	}
	return ks
}

// SupportedVersionRange returns this client's own supported version
// range for api, and whether the api is known at all.
func SupportedVersionRange(api int16) (VersionRange, bool) {
	vr, ok := supported[api]
	return vr, ok
}

// Kafka09Range returns the historical Kafka 0.9 minimum version for
// api, and whether the api is known at all.
func Kafka09Range(api int16) (int16, bool) {
	v, ok := kafka09[api]
	return v, ok
}
