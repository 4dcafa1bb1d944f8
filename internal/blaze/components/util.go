package components

import (
	"context"
	"fmt"
	"time"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/data"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/session"
)

const serverVersion = "Blaze 3.15.08.0 (CL# 1060080)"

// Components advertised to clients in the PreAuth reply.
var supportedComponents = []uint64{
	packets.AuthenticationComponent,
	packets.GameManagerComponent,
	packets.RedirectorComponent,
	packets.PlaygroupsComponent,
	packets.UtilComponent,
	packets.MessagingComponent,
	packets.AssociationListsComponent,
	packets.UserSessionsComponent,
}

// Client configuration sections returned by FetchClientConfig, keyed by
// config id. Unknown ids get an empty section.
var clientConfigs = map[string]map[string]string{
	"BlazeSDK": {
		"connIdleTimeout":       "90s",
		"defaultRequestTimeout": "20s",
		"pingPeriod":            "15s",
		"voipHeadsetUpdateRate": "1000",
	},
	"Associations": {
		"maxFriends": "100",
		"maxBlocked": "100",
	},
}

func (h *handlers) fetchClientConfig(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id := req.Body.StrOr("CFID", "")
	conf, ok := clientConfigs[id]
	if !ok {
		conf = map[string]string{}
	}
	return tdf.NewStruct().Set("CONF", tdf.StringMap(conf)), nil
}

func (h *handlers) ping(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	return tdf.NewStruct().SetUint("STIM", uint64(h.now().Unix())), nil
}

func (h *handlers) setClientData(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	var cd records.ClientData
	if err := req.Read(&cd); err != nil {
		return nil, err
	}
	applyClientData(req.Session, &cd)
	return nil, nil
}

func applyClientData(s *session.Session, cd *records.ClientData) {
	if cd.Language == 0 {
		return
	}
	s.UpdateExtended(func(ext *session.ExtendedData) {
		ext.Locale = session.ParseLocale(cd.Language)
	})
}

func (h *handlers) tickerServer() records.TickerServer {
	cfg := h.srv.Config
	return records.TickerServer{
		Address: cfg.ExternalIP,
		Key:     cfg.Ticker.Key,
		Port:    uint16(cfg.Ticker.Port),
	}
}

func (h *handlers) telemetryServer(s *session.Session) records.TelemetryServer {
	cfg := h.srv.Config
	return records.TelemetryServer{
		Address:        cfg.ExternalIP,
		Locale:         session.PackLocale(s.Extended().Locale),
		Port:           uint16(cfg.Telemetry.Port),
		SessionID:      s.AuthToken(),
		Key:            cfg.Telemetry.Key,
		SendPercentage: uint8(cfg.Telemetry.SendPercentage),
	}
}

func (h *handlers) pssConfig() records.PssConfig {
	cfg := h.srv.Config
	return records.PssConfig{
		Address:   cfg.ExternalIP,
		ProjectID: cfg.Pss.ProjectID,
		Port:      uint16(cfg.Pss.Port),
	}
}

func (h *handlers) getTelemetryServer(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	t := h.telemetryServer(req.Session)
	return records.Marshal(&t), nil
}

func (h *handlers) getTickerServer(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	t := h.tickerServer()
	return records.Marshal(&t), nil
}

// preAuth is the first request of every connection. The reply carries
// everything a client needs before it logs in.
func (h *handlers) preAuth(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	var cd records.ClientData
	if st, ok := req.Body.Struct("CDAT"); ok {
		if err := cd.Read(st); err != nil {
			return nil, blaze.Errorf(packets.ErrorInvalidRequest, "%v", err)
		}
	}
	applyClientData(req.Session, &cd)

	qosConfig := h.srv.Prober.ConfigInfo()
	pss := h.pssConfig()
	tele := h.telemetryServer(req.Session)
	tick := h.tickerServer()
	return tdf.NewStruct().
		SetBool("ANON", false).
		Set("CDAT", records.Marshal(&cd)).
		Set("CIDS", tdf.UintList(supportedComponents...)).
		Set("CONF", tdf.NewStruct().Set("CONF", tdf.StringMap(clientConfigs["BlazeSDK"]))).
		SetString("INST", h.srv.Config.Hostname).
		Set("PSS", records.Marshal(&pss)).
		Set("QOSS", records.Marshal(&qosConfig)).
		SetString("SVER", serverVersion).
		Set("TELE", records.Marshal(&tele)).
		Set("TICK", records.Marshal(&tick)), nil
}

func (h *handlers) postAuth(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	pss := h.pssConfig()
	tele := h.telemetryServer(req.Session)
	tick := h.tickerServer()
	options := records.UserOptions{}
	return tdf.NewStruct().
		Set("PSS", records.Marshal(&pss)).
		Set("TELE", records.Marshal(&tele)).
		Set("TICK", records.Marshal(&tick)).
		Set("UROP", records.Marshal(&options)), nil
}

func (h *handlers) userSettingsLoad(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	key := req.Body.StrOr("KEY", "")
	personaID := req.Session.PersonaID()
	setting, err := data.FindUserSetting(h.srv.DB, personaID, key)
	if err != nil {
		return nil, fmt.Errorf("loading setting %s of persona %d: %w", key, personaID, err)
	} else if setting == nil {
		return nil, blaze.Errorf(packets.ErrorSettingNotFound, "%s", key)
	}
	return tdf.NewStruct().SetString("DATA", setting.Value).SetString("KEY", key), nil
}

func (h *handlers) userSettingsSave(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	key, ok := req.Body.Str("KEY")
	if !ok || key == "" {
		return nil, blaze.Errorf(packets.ErrorInvalidRequest, "missing KEY")
	}
	setting := &data.UserSetting{
		PersonaID: req.Session.PersonaID(),
		Key:       key,
		Value:     req.Body.StrOr("DATA", ""),
	}
	if err := data.SaveUserSetting(h.srv.DB, setting); err != nil {
		return nil, fmt.Errorf("saving setting %s of persona %d: %w", key, setting.PersonaID, err)
	}
	return nil, nil
}

func (h *handlers) userSettingsLoadAll(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	personaID := req.Session.PersonaID()
	settings, err := data.FindUserSettings(h.srv.DB, personaID)
	if err != nil {
		return nil, fmt.Errorf("loading settings of persona %d: %w", personaID, err)
	}
	m := make(map[string]string, len(settings))
	for _, s := range settings {
		m[s.Key] = s.Value
	}
	return tdf.NewStruct().Set("SMAP", tdf.StringMap(m)), nil
}

// setClientMetrics accepts the client's device metrics. Nothing is kept
// beyond a debug log.
func (h *handlers) setClientMetrics(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	req.Logger.Debugf("client metrics from %s at %s: %d fields", req.Session, h.now().Format(time.RFC3339), req.Body.Len())
	return nil, nil
}
