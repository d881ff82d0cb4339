package doctor

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldsync/internal/core/config"
)

// ConfigCheck validates the config file and reports soft warnings.
type ConfigCheck struct {
	cfg        *config.Config
	configPath string
}

// NewConfigCheck creates a new config check.
func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, configPath: configPath}
}

func (c *ConfigCheck) Name() string {
	return "Config"
}

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if err := c.cfg.ValidateDeep(c.configPath); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "config file",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  "config file",
		Status: StatusPass,
		Detail: c.configPath,
	})

	for _, w := range c.cfg.Warnings() {
		result.Items = append(result.Items, CheckItem{
			Label:  w.Category,
			Status: StatusWarn,
			Detail: w.Message,
		})
	}

	if len(result.Items) == 1 {
		result.Items = append(result.Items, CheckItem{
			Label:  "remote",
			Status: StatusPass,
			Detail: fmt.Sprintf("base_url %s", c.cfg.Remote.BaseURL),
		})
	}

	return result
}
