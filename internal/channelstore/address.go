package channelstore

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolvedAddress is the result of resolving a channel address, possibly
// across project boundaries.
type ResolvedAddress struct {
	Dir                 string
	LocalName           string
	IsProjectEntryPoint bool
	ProjectName         string
}

// ProjectResolver looks up a registered project's agents-directory path.
type ProjectResolver interface {
	Resolve(name string) (string, bool)
}

// ResolveChannelAddress resolves an address of the form @name, #name,
// @project/name, or #project/name. localDir is the agents-directory to use
// when the address stays local.
func ResolveChannelAddress(address string, localDir string, registry ProjectResolver) (ResolvedAddress, error) {
	if len(address) == 0 {
		return ResolvedAddress{}, fmt.Errorf("channelstore: empty address")
	}

	sigil := address[0]
	if sigil != '@' && sigil != '#' {
		return ResolvedAddress{}, fmt.Errorf("channelstore: address %q must start with @ or #", address)
	}
	rest := address[1:]

	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		projectName := rest[:idx]
		name := rest[idx+1:]
		projectDir, ok := registry.Resolve(projectName)
		if !ok {
			return ResolvedAddress{}, fmt.Errorf("channelstore: unknown project %q in address %q", projectName, address)
		}
		return ResolvedAddress{
			Dir:         filepath.Join(projectDir, "channels"),
			LocalName:   string(sigil) + name,
			ProjectName: projectName,
		}, nil
	}

	if sigil == '@' {
		if projectDir, ok := registry.Resolve(rest); ok {
			return ResolvedAddress{
				Dir:                 filepath.Join(projectDir, "channels"),
				LocalName:           "@root",
				IsProjectEntryPoint: true,
				ProjectName:         rest,
			}, nil
		}
	}

	return ResolvedAddress{
		Dir:       filepath.Join(localDir, "channels"),
		LocalName: address,
	}, nil
}
