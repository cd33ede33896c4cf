// Package consul wraps service discovery and registration against the
// consul agent every service in the platform registers with.
package consul

import (
	"fmt"
	"os"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
)

func NewClient() (*consulapi.Client, error) {
	config := consulapi.DefaultConfig()
	if addr := os.Getenv("CONSUL_HTTP_ADDR"); addr != "" {
		config.Address = addr
	}
	client, err := consulapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("creating consul client: %w", err)
	}
	return client, nil
}

// GetServiceAddress returns the address and port of a healthy instance of
// the named service.
func GetServiceAddress(client *consulapi.Client, serviceName string) (string, int, error) {
	if client == nil {
		return "", 0, fmt.Errorf("consul client is nil")
	}
	services, _, err := client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", 0, fmt.Errorf("querying consul for %q: %w", serviceName, err)
	}
	if len(services) == 0 {
		return "", 0, fmt.Errorf("no healthy instances of service %q", serviceName)
	}

	svc := services[0].Service
	address := svc.Address
	if address == "" {
		address = services[0].Node.Address
	}
	return address, svc.Port, nil
}

// RegisterService registers this service instance with consul so the
// gateway and the other services can discover it.
func RegisterService(client *consulapi.Client, serviceName, address string, port int) error {
	registration := &consulapi.AgentServiceRegistration{
		ID:      serviceName + "-" + address + "-" + strconv.Itoa(port),
		Name:    serviceName,
		Address: address,
		Port:    port,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/ping", address, port),
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("registering service %q: %w", serviceName, err)
	}
	return nil
}
