package instance

import "github.com/angelmondragon/storefront/pkg/env"

// GetID names this process in logs. An explicit id wins over the platform
// dyno name, which wins over the hostname.
func GetID() string {
	return env.First("local", "STOREFRONT_INSTANCE_ID", "DYNO", "HOSTNAME")
}
