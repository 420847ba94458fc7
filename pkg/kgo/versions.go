package kgo

import (
	"context"
	"fmt"
	"time"

	"github.com/brokercore/kpro/pkg/kerr"
	"github.com/brokercore/kpro/pkg/kmsg"
	"github.com/brokercore/kpro/pkg/kplog"
)

// versionRanges is component C6: the result of negotiating, once per
// connection, which API version this client and the broker on the
// other end of it both support for every API this module knows about.
type versionRanges struct {
	byAPI map[int16]kmsg.VersionRange
}

// versionRange looks up the negotiated [min, max] for api.
func (v *versionRanges) versionRange(api int16) (kmsg.VersionRange, bool) {
	vr, ok := v.byAPI[api]
	return vr, ok
}

// pin returns the highest version this connection may use for api, or
// a NotSupportedError/BadVersionError per spec.md §4.6.
func (v *versionRanges) pin(api int16, want kmsg.VersionRange) (int16, error) {
	vr, ok := v.byAPI[api]
	if !ok {
		return 0, &NotSupportedError{API: api}
	}
	hi := vr.Max
	if want.Max < hi {
		hi = want.Max
	}
	if hi < vr.Min || hi < want.Min {
		return 0, &BadVersionError{Detail: fmt.Sprintf("no overlapping version for api %d", api)}
	}
	return hi, nil
}

// negotiateVersions implements spec.md §4.6: send ApiVersions at this
// client's highest supported version, retry once at version 0 if the
// broker rejects it with UNSUPPORTED_VERSION (grounded in the
// teacher's requestAPIVersions downgrade-on-error-35 loop), and
// intersect every returned range with this client's own. Brokers that
// refuse ApiVersions outright (pre-0.10, never advertised) fall back
// to the historical Kafka 0.9 minimums.
func negotiateVersions(ctx context.Context, c *Connection, timeout time.Duration) *versionRanges {
	req := &kmsg.ApiVersionsRequest{Version: 3}
	resp, err := sendHandshakeTyped(ctx, c, req, timeout)
	if err != nil {
		return fallbackVersions()
	}

	avResp := resp.(*kmsg.ApiVersionsResponse)
	if kerrErr := kerr.ErrorForCode(avResp.ErrorCode); kerrErr != nil {
		if avResp.ErrorCode == kerr.UnsupportedVersion.Code {
			req = &kmsg.ApiVersionsRequest{Version: 0}
			resp, err = sendHandshakeTyped(ctx, c, req, timeout)
			if err != nil {
				return fallbackVersions()
			}
			avResp = resp.(*kmsg.ApiVersionsResponse)
			if kerr.ErrorForCode(avResp.ErrorCode) != nil {
				return fallbackVersions()
			}
		} else {
			return fallbackVersions()
		}
	}

	out := &versionRanges{byAPI: make(map[int16]kmsg.VersionRange, len(avResp.ApiKeys))}
	for _, k := range avResp.ApiKeys {
		mine, ok := kmsg.SupportedVersionRange(k.APIKey)
		if !ok {
			continue
		}
		lo := mine.Min
		if k.MinVersion > lo {
			lo = k.MinVersion
		}
		hi := mine.Max
		if k.MaxVersion < hi {
			hi = k.MaxVersion
		}
		if lo > hi {
			continue // no overlap at all; api effectively unusable
		}
		out.byAPI[k.APIKey] = kmsg.VersionRange{Min: lo, Max: hi}
	}
	// APIs the broker's ApiVersions response omitted (it only lists
	// APIs it knows) are not filled in: they are simply absent, which
	// pin() reports as NotSupportedError.
	return out
}

func fallbackVersions() *versionRanges {
	out := &versionRanges{byAPI: make(map[int16]kmsg.VersionRange)}
	for _, api := range kmsg.AllAPIs() {
		if v, ok := kmsg.Kafka09Range(api); ok {
			out.byAPI[api] = kmsg.VersionRange{Min: v, Max: v}
		}
	}
	return out
}

// sendHandshakeTyped sends req over c through doTyped, so it takes an
// ordinary correlation ID from the connection actor's pending table,
// decodes the typed response, and logs any failure. It is used only
// for ApiVersions, which negotiateVersions runs immediately after the
// connection actor starts, before any caller-visible traffic exists.
func sendHandshakeTyped(ctx context.Context, c *Connection, req kmsg.Request, timeout time.Duration) (kmsg.Response, error) {
	resp, err := doTyped(ctx, c, req, timeout)
	if err != nil {
		c.cfg.logger.Log(kplog.LogLevelDebug, "handshake request failed", "api", req.Key(), "version", req.GetVersion(), "err", err)
	}
	return resp, err
}
