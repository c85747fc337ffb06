package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/tirasundara/ccd-tax-export/internal/domain"
)

type accountsFile struct {
	Accounts []string `yaml:"accounts"`
}

// loadAccounts unions the addresses given on the command line with those in
// the optional YAML accounts file. Duplicates across the two sources collapse
// into one tracked account.
func loadAccounts(fromFlags []string, filePath string) (domain.TrackedAccountSet, error) {
	accounts := make([]domain.Account, 0, len(fromFlags))
	for _, address := range fromFlags {
		accounts = append(accounts, domain.Account(address))
	}

	if filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return domain.TrackedAccountSet{}, fmt.Errorf("reading accounts file: %w", err)
		}

		var parsed accountsFile
		if err := yaml.Unmarshal(content, &parsed); err != nil {
			return domain.TrackedAccountSet{}, fmt.Errorf("parsing accounts file %s: %w", filePath, err)
		}

		for _, address := range parsed.Accounts {
			accounts = append(accounts, domain.Account(address))
		}
	}

	tracked, err := domain.NewTrackedAccountSet(accounts...)
	if err != nil {
		return domain.TrackedAccountSet{}, fmt.Errorf("no usable accounts (use --account or --accounts-file): %w", err)
	}

	return tracked, nil
}
