package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	if c.Routing.ConfidenceThreshold < 0 || c.Routing.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("routing.confidence_threshold must be in [0,1], got %v", c.Routing.ConfidenceThreshold))
	}
	if c.Routing.ClarifyBound < 0 {
		errs = append(errs, fmt.Errorf("routing.clarify_bound must be >= 0, got %d", c.Routing.ClarifyBound))
	}
	if c.Routing.RetryBound < 0 {
		errs = append(errs, fmt.Errorf("routing.retry_bound must be >= 0, got %d", c.Routing.RetryBound))
	}

	switch c.Routing.ProductInfoRoute {
	case "policy", "web":
		// valid
	default:
		errs = append(errs, fmt.Errorf("routing.product_info_route must be \"policy\" or \"web\", got %q", c.Routing.ProductInfoRoute))
	}

	switch c.Routing.ClarificationMode {
	case "suspend", "auto":
		// valid
	default:
		errs = append(errs, fmt.Errorf("routing.clarification_mode must be \"suspend\" or \"auto\", got %q", c.Routing.ClarificationMode))
	}

	switch c.Storage.Type {
	case "memory", "file", "redis":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"file\", or \"redis\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == "redis" && c.Storage.Redis.Address == "" {
		errs = append(errs, fmt.Errorf("storage.redis.address is required when storage.type is \"redis\""))
	}

	return errors.Join(errs...)
}
