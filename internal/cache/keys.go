package cache

import (
	"fmt"

	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

func JobStatusKey(kind models.JobKind, jobID string) string {
	return fmt.Sprintf("job:%s:%s", kind, jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

func HealthProbeKey() string {
	return "health:backend"
}
