package main

import (
	"context"
	"fmt"

	"github.com/kazihub/kazi/core/automation"
)

// seedRules installs the default escalation ladder on a fresh install.
// It refuses to run when any rule already exists so a tuned ladder is
// never clobbered.
func (cli *commandLine) seedRules() error {
	ctx := context.Background()

	existing, err := cli.ruleRepo.QueryRules(ctx, false /* onlyActive */)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("%d rule(s) already installed, not seeding", len(existing))
	}

	for _, rule := range automation.DefaultLadder() {
		if _, err := cli.ruleRepo.CreateRule(ctx, rule); err != nil {
			return err
		}
		logger.Printf("installed rule %q (%s after %s)", rule.Name, rule.Action, rule.Threshold)
	}
	return nil
}
