// Package redirector maps the service a client asks for to the address of
// the server that provides it.
package redirector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"

	gocache "github.com/patrickmn/go-cache"
)

// Matches any client type.
const AnyClientType = "*"

var ErrUnknownService = errors.New("unknown service")

// Route is one entry of the redirector's table.
type Route struct {
	ServiceName string
	ClientType  string
	Address     ServerAddress
}

// ServerAddress is where a client should connect for a service.
type ServerAddress struct {
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
	Port     uint16 `json:"port"`
	Secure   bool   `json:"secure"`
}

// IPv4 returns the address as the big-endian integer used on the wire, or 0
// if IP is not an IPv4 address.
func (a ServerAddress) IPv4() uint32 {
	ip := net.ParseIP(a.IP).To4()
	if ip == nil {
		return 0
	}
	return binary.BigEndian.Uint32(ip)
}

func (a ServerAddress) String() string {
	host := a.Hostname
	if host == "" {
		host = a.IP
	}
	return fmt.Sprintf("%s:%d", host, a.Port)
}

// Resolver looks up routes. It holds no session state and is safe for
// concurrent use. The lookup index only ever holds one entry per configured
// route, whatever clients ask for.
type Resolver struct {
	routes []Route
	index  *gocache.Cache
}

func NewResolver(routes []Route) *Resolver {
	r := &Resolver{
		routes: append([]Route(nil), routes...),
		index:  gocache.New(gocache.NoExpiration, 0),
	}
	for _, route := range r.routes {
		clientType := route.ClientType
		if clientType == "" {
			clientType = AnyClientType
		}
		// Add keeps the first of duplicate routes.
		_ = r.index.Add(indexKey(route.ServiceName, clientType), route.Address, gocache.NoExpiration)
	}
	return r
}

func indexKey(serviceName, clientType string) string {
	return strings.ToLower(serviceName) + "|" + strings.ToLower(clientType)
}

// Resolve returns the address for serviceName. Routes for the exact client
// type take precedence over wildcard routes.
func (r *Resolver) Resolve(serviceName, clientType string) (ServerAddress, error) {
	if clientType != AnyClientType {
		if v, ok := r.index.Get(indexKey(serviceName, clientType)); ok {
			return v.(ServerAddress), nil
		}
	}
	if v, ok := r.index.Get(indexKey(serviceName, AnyClientType)); ok {
		return v.(ServerAddress), nil
	}
	return ServerAddress{}, fmt.Errorf("%w: %s (client type %s)", ErrUnknownService, serviceName, clientType)
}

// Routes returns a copy of the routing table.
func (r *Resolver) Routes() []Route {
	return append([]Route(nil), r.routes...)
}
