package components

import (
	"context"
	"time"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/qos"
	"github.com/dcrodman/blaze/internal/session"
)

func (h *handlers) updateHardwareFlags(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	flags, err := requireUint(req.Body, "HWFG")
	if err != nil {
		return nil, err
	}
	req.Session.UpdateExtended(func(ext *session.ExtendedData) {
		ext.HardwareFlags = uint32(flags)
	})
	h.notifyExtendedData(req.Session)
	return nil, nil
}

// lookupUser finds an online user by persona id or, failing that, by name.
func (h *handlers) lookupUser(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	var id records.UserIdentification
	if err := req.Read(&id); err != nil {
		return nil, err
	}

	var (
		target *session.Session
		ok     bool
	)
	if id.ID != 0 {
		target, ok = h.srv.Sessions.FindByPersona(id.ID)
	}
	if !ok && id.Name != "" {
		target, ok = h.srv.Sessions.FindByName(id.Name)
	}
	if !ok {
		return nil, blaze.Errorf(packets.ErrorUserNotFound, "user %d/%s is not online", id.ID, id.Name)
	}
	return records.Marshal(h.userData(target)), nil
}

// updateNetworkInfo records the client's addresses and the latencies it
// measured to each ping site. Every sample is checked before anything is
// applied, so a rejected request leaves the session as it was.
func (h *handlers) updateNetworkInfo(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	sess := req.Session
	addr := networkAddress(req.Body)
	var quality records.NetworkQosData
	if st, ok := req.Body.Struct("NQOS"); ok {
		if err := quality.Read(st); err != nil {
			return nil, blaze.Errorf(packets.ErrorInvalidRequest, "%v", err)
		}
	}

	type probe struct {
		site   string
		sample qos.Sample
	}
	latencies := latencyMap(req.Body)
	var probes []probe
	for _, site := range h.srv.Prober.Sites() {
		ms, ok := latencies[site.Alias]
		if !ok {
			continue
		}
		sample := qos.Sample{
			RTT:           time.Duration(ms) * time.Millisecond,
			UpstreamBps:   quality.UpstreamBps,
			DownstreamBps: quality.DownstreamBps,
		}
		if addr != nil {
			sample.InternalPort = addr.Internal.Port
			sample.ExternalPort = addr.External.Port
		}
		if err := h.srv.Prober.Validate(site.Alias, []qos.Sample{sample}); err != nil {
			return nil, err
		}
		probes = append(probes, probe{site: site.Alias, sample: sample})
	}
	if len(probes) == 0 {
		return nil, blaze.Errorf(packets.ErrorInsufficientData, "no latency samples for a known ping site")
	}

	if addr != nil {
		sess.UpdateExtended(func(ext *session.ExtendedData) {
			ext.Internal = session.Address{IP: addr.Internal.IP, Port: addr.Internal.Port}
			ext.External = session.Address{IP: addr.External.IP, Port: addr.External.Port}
		})
	}
	for _, pr := range probes {
		summary, err := h.srv.Prober.RecordProbe(sess, pr.site, []qos.Sample{pr.sample})
		if err != nil {
			req.Logger.Warnf("discarding qos sample of %s: %v", sess, err)
			continue
		}
		req.Logger.Debugf("%s qos %s", sess, summary)
	}

	h.notifyExtendedData(sess)
	return nil, nil
}

// networkAddress reads the ADDR union, returning nil unless it holds an
// address pair.
func networkAddress(body *tdf.Struct) *records.IpPairAddress {
	u, ok := body.Union("ADDR")
	if !ok || !u.IsSet() || u.Active != records.NetworkAddressIpPair {
		return nil
	}
	st, ok := u.Value.(*tdf.Struct)
	if !ok {
		return nil
	}
	addr := &records.IpPairAddress{}
	if err := addr.Read(st); err != nil {
		return nil
	}
	return addr
}

// latencyMap reads the NLMP map of ping site alias to milliseconds.
func latencyMap(body *tdf.Struct) map[string]int64 {
	m, ok := body.Map("NLMP")
	if !ok {
		return nil
	}
	out := make(map[string]int64, m.Len())
	for i := 0; i < m.Len(); i++ {
		k, v := m.Entry(i)
		alias, ok := k.(tdf.String)
		if !ok {
			continue
		}
		n, ok := v.(tdf.Integer)
		if !ok {
			continue
		}
		if ms, ok := n.Int64(); ok {
			out[string(alias)] = ms
		}
	}
	return out
}
