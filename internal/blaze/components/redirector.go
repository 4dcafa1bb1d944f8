package components

import (
	"context"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/core/tdf"
)

// Union member of a server instance address holding an IP address.
const serverAddressIP uint8 = 0

// getServerInstance tells the client where the service it named lives. It is
// answered before login.
func (h *handlers) getServerInstance(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	name := req.Body.StrOr("NAME", "")
	clientType := req.Body.StrOr("CLNT", "")

	addr, err := h.srv.Resolver.Resolve(name, clientType)
	if err != nil {
		return nil, err
	}
	req.Logger.Debugf("redirecting %s (%s) to %s", name, clientType, addr)

	value := tdf.NewStruct().
		SetString("HOST", addr.Hostname).
		SetUint("IP", uint64(addr.IPv4())).
		SetUint("PORT", uint64(addr.Port))
	return tdf.NewStruct().
		Set("ADDR", tdf.NewUnion(serverAddressIP, "VALU", value)).
		SetBool("SECU", addr.Secure).
		SetUint("XDNS", 0), nil
}
