// Package model defines conductor's settings records, run states and error taxonomy.
package model

// Settings is the full settings document: runtime knobs plus the
// servers, collections, resources and tasks the factories build from.
type Settings struct {
	Conductor   ConductorConfig    `yaml:"conductor" toml:"conductor" json:"conductor"`
	Servers     []ServerConfig     `yaml:"servers" toml:"servers" json:"servers"`
	Collections []CollectionConfig `yaml:"collections" toml:"collections" json:"collections"`
	Resources   []ResourceConfig   `yaml:"resources" toml:"resources" json:"resources"`
	Tasks       []TaskConfig       `yaml:"tasks" toml:"tasks" json:"tasks"`
}

type ConductorConfig struct {
	Logging              LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
	WorkRoot             string        `yaml:"work_root" toml:"work_root" json:"work_root"`
	Workers              int           `yaml:"workers" toml:"workers" json:"workers"`
	FTPTimeoutSec        int           `yaml:"ftp_timeout_sec" toml:"ftp_timeout_sec" json:"ftp_timeout_sec"`
	MaxDirectoryAttempts int           `yaml:"max_directory_attempts" toml:"max_directory_attempts" json:"max_directory_attempts"`
	HistoryDB            string        `yaml:"history_db" toml:"history_db" json:"history_db"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
}

type ServerConfig struct {
	Name    string         `yaml:"name" toml:"name" json:"name"`
	Domain  string         `yaml:"domain" toml:"domain" json:"domain"`
	Schemes []SchemeConfig `yaml:"schemes" toml:"schemes" json:"schemes"`
}

// SchemeConfig describes how a server is reached for one method (get or post).
type SchemeConfig struct {
	SchemeName   string   `yaml:"scheme_name" toml:"scheme_name" json:"scheme_name"`
	Method       string   `yaml:"method" toml:"method" json:"method"`
	BasePaths    []string `yaml:"base_paths" toml:"base_paths" json:"base_paths"`
	PortNumber   int      `yaml:"port_number" toml:"port_number" json:"port_number"`
	UserName     string   `yaml:"user_name" toml:"user_name" json:"user_name"`
	UserPassword string   `yaml:"user_password" toml:"user_password" json:"user_password"`
}

type CollectionConfig struct {
	ShortName string `yaml:"short_name" toml:"short_name" json:"short_name"`
	Name      string `yaml:"name" toml:"name" json:"name"`
}

type ResourceConfig struct {
	Name          string            `yaml:"name" toml:"name" json:"name"`
	URN           string            `yaml:"urn" toml:"urn" json:"urn"`
	LocalPattern  string            `yaml:"local_pattern" toml:"local_pattern" json:"local_pattern"`
	Collection    string            `yaml:"collection" toml:"collection" json:"collection"`
	Parameters    []ParameterConfig `yaml:"parameters" toml:"parameters" json:"parameters"`
	GetLocations  []LocationConfig  `yaml:"get_locations" toml:"get_locations" json:"get_locations"`
	PostLocations []LocationConfig  `yaml:"post_locations" toml:"post_locations" json:"post_locations"`
	FindLocations []LocationConfig  `yaml:"find_locations" toml:"find_locations" json:"find_locations"`
}

type ParameterConfig struct {
	Name  string `yaml:"name" toml:"name" json:"name"`
	Value string `yaml:"value" toml:"value" json:"value"`
}

// LocationConfig ties a resource to a server scheme. The selection fields
// only matter for find locations.
type LocationConfig struct {
	Server        string   `yaml:"server" toml:"server" json:"server"`
	Scheme        string   `yaml:"scheme" toml:"scheme" json:"scheme"`
	RelativePaths []string `yaml:"relative_paths" toml:"relative_paths" json:"relative_paths"`
	Authorization string   `yaml:"authorization" toml:"authorization" json:"authorization"`
	MediaType     string   `yaml:"media_type" toml:"media_type" json:"media_type"`
	TemporalRule  string   `yaml:"temporal_rule" toml:"temporal_rule" json:"temporal_rule"`
	LockTimeslot  []string `yaml:"lock_timeslot" toml:"lock_timeslot" json:"lock_timeslot"`
	Parameter     string   `yaml:"parameter" toml:"parameter" json:"parameter"`
	ParameterRule string   `yaml:"parameter_rule" toml:"parameter_rule" json:"parameter_rule"`
}

type TaskConfig struct {
	Name                   string               `yaml:"name" toml:"name" json:"name"`
	URN                    string               `yaml:"urn" toml:"urn" json:"urn"`
	Description            string               `yaml:"description" toml:"description" json:"description"`
	RemoveWorkingDirectory *bool                `yaml:"remove_working_directory" toml:"remove_working_directory" json:"remove_working_directory"`
	DecompressInputs       *bool                `yaml:"decompress_inputs" toml:"decompress_inputs" json:"decompress_inputs"`
	Inputs                 []TaskResourceConfig `yaml:"inputs" toml:"inputs" json:"inputs"`
	Outputs                []TaskResourceConfig `yaml:"outputs" toml:"outputs" json:"outputs"`
	Deletion               DeletionConfig       `yaml:"deletion" toml:"deletion" json:"deletion"`
}

type TaskResourceConfig struct {
	Name                 string                    `yaml:"name" toml:"name" json:"name"`
	ExceptWhen           CalendarConfig            `yaml:"except_when" toml:"except_when" json:"except_when"`
	OptionalWhen         CalendarConfig            `yaml:"optional_when" toml:"optional_when" json:"optional_when"`
	CanGetRepresentation *bool                     `yaml:"can_get_representation" toml:"can_get_representation" json:"can_get_representation"`
	Strategy             string                    `yaml:"strategy" toml:"strategy" json:"strategy"`
	StrategyParams       map[string]int            `yaml:"strategy_params" toml:"strategy_params" json:"strategy_params"`
	FilteringRules       []string                  `yaml:"filtering_rules" toml:"filtering_rules" json:"filtering_rules"`
	MultipleParameters   []MultipleParameterConfig `yaml:"multiple_parameters" toml:"multiple_parameters" json:"multiple_parameters"`
}

// CalendarConfig lists calendar component values; a timeslot matches when
// any of its components is listed.
type CalendarConfig struct {
	Years   []int `yaml:"years" toml:"years" json:"years"`
	Months  []int `yaml:"months" toml:"months" json:"months"`
	Days    []int `yaml:"days" toml:"days" json:"days"`
	Hours   []int `yaml:"hours" toml:"hours" json:"hours"`
	Minutes []int `yaml:"minutes" toml:"minutes" json:"minutes"`
	Dekades []int `yaml:"dekades" toml:"dekades" json:"dekades"`
}

type MultipleParameterConfig struct {
	Parameter string   `yaml:"parameter" toml:"parameter" json:"parameter"`
	Values    []string `yaml:"values" toml:"values" json:"values"`
}

// DeletionConfig drives the deletion run mode: which timeslots, relative to
// the task's, have their outputs removed.
type DeletionConfig struct {
	Start     map[string]int `yaml:"start" toml:"start" json:"start"`
	Frequency map[string]int `yaml:"frequency" toml:"frequency" json:"frequency"`
	Count     int            `yaml:"count" toml:"count" json:"count"`
}
