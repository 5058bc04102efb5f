package main

import "github.com/pkg/errors"

// splitRepoPath splits an "owner/name" CLI argument, the shorthand
// every subcommand taking a repository uses.
func splitRepoPath(path string) (owner, name string, err error) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			owner, name = path[:i], path[i+1:]
			if owner == "" || name == "" {
				break
			}
			return owner, name, nil
		}
	}
	return "", "", errors.Errorf("invalid repository path %q, expected owner/name", path)
}
