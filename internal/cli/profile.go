package cli

import (
	"io/ioutil"

	"github.com/google/shlex"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// profileFile is the on-disk profile configuration, e.g.:
//
//	profiles:
//	  debug:
//	    compile_flags: -g -O0
//	  release:
//	    compile_flags: -O3 -DNDEBUG
//	    link_flags: -s
type profileFile struct {
	Profiles map[string]struct {
		CompileFlags string `yaml:"compile_flags"`
		LinkFlags    string `yaml:"link_flags"`
	} `yaml:"profiles"`
}

// LoadProfiles reads profile definitions from the YAML file at path. Flag
// strings are split with shell-style word rules.
func LoadProfiles(path string) (map[string]Profile, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("profiles: %w", err)
	}
	var pf profileFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil, xerrors.Errorf("profiles %s: %w", path, err)
	}
	out := make(map[string]Profile, len(pf.Profiles))
	for name, raw := range pf.Profiles {
		cf, err := shlex.Split(raw.CompileFlags)
		if err != nil {
			return nil, xerrors.Errorf("profiles %s: %s compile_flags: %w", path, name, err)
		}
		lf, err := shlex.Split(raw.LinkFlags)
		if err != nil {
			return nil, xerrors.Errorf("profiles %s: %s link_flags: %w", path, name, err)
		}
		out[name] = Profile{CompileFlags: cf, LinkFlags: lf}
	}
	return out, nil
}
