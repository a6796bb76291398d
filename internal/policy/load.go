package policy

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

type policyFile struct {
	Groups []Entry `yaml:"groups"`
}

// LoadFile reads an ordered role table:
//
//	groups:
//	  - role: organizer
//	    groupUrl: https://server/groups/4
func LoadFile(path string) (RolePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RolePolicy{}, errors.New("failed to read the policy file: " + err.Error())
	}

	return Parse(data)
}

func Parse(data []byte) (RolePolicy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return RolePolicy{}, errors.New("failed to parse the policy file: " + err.Error())
	}

	for _, e := range file.Groups {
		if !e.Role.IsValid() {
			return RolePolicy{}, errors.New("unknown role in the policy file: " + e.Role.String())
		}
	}

	return New(file.Groups), nil
}
