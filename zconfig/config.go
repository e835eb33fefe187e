// Session configuration (spec.md §6 config keys), serializable with
// github.com/json-iterator/go the way the teacher serializes config/
// metadata structs, for the z_info-style introspection dump (SPEC_FULL.md
// §9).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package zconfig

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Mode string

const (
	ModeClient Mode = "client"
	ModePeer   Mode = "peer"
)

type Config struct {
	Mode                Mode     `json:"mode"`
	Connect             []string `json:"connect,omitempty"`
	Listen              []string `json:"listen,omitempty"`
	User                string   `json:"user,omitempty"`
	Password            string   `json:"password,omitempty"`
	MulticastScouting   bool     `json:"multicast_scouting"`
	MulticastLocator    string   `json:"multicast_locator,omitempty"`
	ScoutingTimeoutMs   int      `json:"scouting_timeout_ms,omitempty"`
	LeaseMs             int      `json:"lease_ms,omitempty"`
	SNResolutionBits    uint     `json:"sn_resolution_bits,omitempty"`
}

// Default mirrors cmn.Rom's defaults (10s lease, 28-bit SN resolution).
func Default() Config {
	return Config{
		Mode:              ModePeer,
		MulticastScouting: true,
		MulticastLocator:  "udp/224.0.0.224:7447",
		ScoutingTimeoutMs: 1000,
		LeaseMs:           10000,
		SNResolutionBits:  28,
	}
}

func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	return json.Marshal(alias(c))
}

func (c *Config) UnmarshalJSON(b []byte) error {
	type alias Config
	return json.Unmarshal(b, (*alias)(c))
}

// Info is the read-only z_info-style introspection snapshot SPEC_FULL.md §9
// names: local identity plus registry/transport sizing, with no mutation
// capability of its own.
type Info struct {
	LocalZID          string `json:"local_zid"`
	RemoteZID         string `json:"remote_zid,omitempty"`
	LocalResources    int    `json:"local_resources"`
	RemoteResources   int    `json:"remote_resources"`
	Subscriptions     int    `json:"subscriptions"`
	Queryables        int    `json:"queryables"`
	PendingQueries    int    `json:"pending_queries"`
	FramesTx          uint64 `json:"frames_tx"`
	FramesRx          uint64 `json:"frames_rx"`
	BytesTx           uint64 `json:"bytes_tx"`
	BytesRx           uint64 `json:"bytes_rx"`
	DroppedDuplicates uint64 `json:"dropped_duplicates"`
}

func (i Info) JSON() ([]byte, error) { return json.MarshalIndent(i, "", "  ") }
