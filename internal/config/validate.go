// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field bounds (struct tags) and the cross-field rules that
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateTrending(); err != nil {
		return err
	}
	return c.validateSchedule()
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required when store.backend=redis")
		}
	case "badger":
		if c.Store.BadgerPath == "" {
			return fmt.Errorf("store.badger_path is required when store.backend=badger")
		}
	}
	return nil
}

func (c *Config) validateModel() error {
	for i, h := range c.Model.HiddenDims {
		if h <= 0 {
			return fmt.Errorf("model.hidden_dims[%d] must be positive, got %d", i, h)
		}
	}
	return nil
}

func (c *Config) validateTrending() error {
	t := &c.Trending
	if t.Mode == "blend" && t.BaseWeight+t.PeriodWeight+t.RecencyWeight == 0 {
		return fmt.Errorf("trending blend weights must not all be zero")
	}
	if t.ViewWeight+t.LikeWeight+t.CommentWeight == 0 {
		return fmt.Errorf("trending event weights must not all be zero")
	}
	if t.TrendMax <= t.TrendMin {
		return fmt.Errorf("trending.trend_max must be greater than trending.trend_min, got %f <= %f", t.TrendMax, t.TrendMin)
	}
	if _, err := time.LoadLocation(t.Timezone); err != nil {
		return fmt.Errorf("trending.timezone %q: %w", t.Timezone, err)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if !c.Schedule.Enabled {
		return nil
	}
	if c.Schedule.InferenceCron == "" && c.Schedule.DailyCron == "" && c.Schedule.WeeklyCron == "" {
		return fmt.Errorf("schedule.enabled=true requires at least one cron expression")
	}
	return nil
}

// formatValidationError turns validator errors into one readable message
// using koanf-style lower-case paths.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
