/*
# Software Name : SIP Decoy Endpoint (SDE)
# SPDX-FileCopyrightText: Copyright (c) Orange Business - OINIS/Services/NSF
# SPDX-License-Identifier: Apache-2.0
#
# This software is distributed under the Apache-2.0
# See the "LICENSES" directory for more details.
#
# Authors:
# - Moatassem Talaat <moatassem.talaat@orange.com>

---
*/

package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"sdego/global"
)

const DefaultPersonality = "default"

type Config struct {
	RecordRTP       bool   `yaml:"record_rtp"`
	TraceRoot       string `yaml:"trace_root"`
	RtpRoot         string `yaml:"rtp_root"`
	RegistrationsDB string `yaml:"registrations_db"`
	MediaDir        string `yaml:"media_dir"`
	RateLimit       int    `yaml:"rate_limit"`
	SustainTimeout  int    `yaml:"sustain_timeout"`

	Personalities map[string]*Personality `yaml:"personalities"`
	Templates     map[string]*SdpTemplate `yaml:"templates"`
}

// Personality is the identity profile served on a given local address.
type Personality struct {
	Name   string   `yaml:"-"`
	Serve  []string `yaml:"serve"` // local addresses, empty matches any
	Domain string   `yaml:"domain"`
	Users  []*User  `yaml:"users"`
}

type User struct {
	Username       string `yaml:"username"`
	Password       string `yaml:"password"` // empty disables authentication
	Realm          string `yaml:"realm"`
	PickupDelayMin int    `yaml:"pickup_delay_min"`
	PickupDelayMax int    `yaml:"pickup_delay_max"`
	SdpTemplate    string `yaml:"sdp_template"`
}

type SdpTemplate struct {
	Name        string `yaml:"-"`
	PayloadType byte   `yaml:"payload_type"`
	Codec       string `yaml:"codec"`
	SampleRate  int    `yaml:"sample_rate"`
	AudioFile   string `yaml:"audio_file"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, global.NewError(1, "cannot read configuration file: "+err.Error())
	}
	cfg := new(Config)
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, global.NewError(2, "cannot parse configuration file: "+err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.TraceRoot == "" {
		cfg.TraceRoot = "var/bistreams"
	}
	if cfg.RtpRoot == "" {
		cfg.RtpRoot = "var/rtp"
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = -1
	}
	if cfg.SustainTimeout <= 0 {
		cfg.SustainTimeout = 20
	}

	if cfg.Personalities == nil {
		cfg.Personalities = make(map[string]*Personality)
	}
	if _, ok := cfg.Personalities[DefaultPersonality]; !ok {
		cfg.Personalities[DefaultPersonality] = &Personality{Domain: "localhost"}
	}

	for name, prs := range cfg.Personalities {
		prs.Name = name
		if prs.Domain == "" {
			prs.Domain = "localhost"
		}
		for _, usr := range prs.Users {
			if usr.Username == "" {
				return global.NewError(3, fmt.Sprintf("personality [%s] holds a user without username", name))
			}
			if usr.Realm == "" {
				usr.Realm = prs.Domain
			}
			if usr.PickupDelayMin <= 0 {
				usr.PickupDelayMin = 5
			}
			if usr.PickupDelayMax <= 0 {
				usr.PickupDelayMax = 10
			}
			if usr.PickupDelayMax < usr.PickupDelayMin {
				usr.PickupDelayMax = usr.PickupDelayMin
			}
			if usr.SdpTemplate == "" {
				usr.SdpTemplate = DefaultPersonality
			}
		}
	}

	if cfg.Templates == nil {
		cfg.Templates = make(map[string]*SdpTemplate)
	}
	if _, ok := cfg.Templates[DefaultPersonality]; !ok {
		cfg.Templates[DefaultPersonality] = &SdpTemplate{PayloadType: 0, Codec: "PCMU", SampleRate: 8000}
	}
	for name, tpl := range cfg.Templates {
		tpl.Name = name
		if tpl.Codec == "" {
			tpl.Codec = "PCMU"
		}
		if tpl.SampleRate <= 0 {
			tpl.SampleRate = 8000
		}
	}
	return nil
}

// PersonalityByAddress selects the profile served on the given local address.
func (cfg *Config) PersonalityByAddress(localIP string) *Personality {
	for _, prs := range cfg.Personalities {
		if slices.Contains(prs.Serve, localIP) {
			return prs
		}
	}
	return cfg.Personalities[DefaultPersonality]
}

func (cfg *Config) Template(name string) *SdpTemplate {
	if tpl, ok := cfg.Templates[name]; ok {
		return tpl
	}
	global.LogWarning(global.LTConfiguration, "Unknown SDP template: "+name)
	return cfg.Templates[DefaultPersonality]
}

func (prs *Personality) User(username string) *User {
	return global.Find(prs.Users, func(u *User) bool { return u.Username == username })
}
