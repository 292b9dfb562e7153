package main

import (
	"strings"
	"sync"

	"sprocket/internal/client"
	"sprocket/internal/config"
)

type commandContext struct {
	addrFlag   *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	clientOnce sync.Once
	client     *client.Client
	clientErr  error
}

func newCommandContext(addrFlag, configFlag *string) *commandContext {
	return &commandContext{
		addrFlag:   addrFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// apiClient resolves the daemon address from the --addr flag or the
// configuration and returns a lazily constructed client.
func (c *commandContext) apiClient() (*client.Client, error) {
	c.clientOnce.Do(func() {
		addr := ""
		if c.addrFlag != nil {
			addr = strings.TrimSpace(*c.addrFlag)
		}
		if addr == "" {
			cfg, err := c.ensureConfig()
			if err != nil {
				c.clientErr = err
				return
			}
			addr = cfg.Paths.APIBind
		}
		c.client, c.clientErr = client.New(addr)
	})
	return c.client, c.clientErr
}
