package httpapi

import "github.com/nextlevelbuilder/agentsd/internal/persona"

func personaNames(personasRoot string) ([]string, error) {
	if personasRoot == "" {
		return nil, nil
	}
	return persona.ListNames(personasRoot)
}
