package instance

import "github.com/electronicjova/storefront-backend/pkg/env"

// GetID identifies this worker replica in logs; JOVA_WORKER_ID falls back to
// the pod hostname.
func GetID() string {
	return env.Get("JOVA_WORKER_ID", env.Get("HOSTNAME", "worker-0"))
}
