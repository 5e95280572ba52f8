// Package models contains the shared data types of cabinprep.
package models

// Target is an airline the candidate rehearses for, with its question bank.
type Target struct {
	Name      string   `yaml:"name" json:"name"`
	Questions []string `yaml:"questions" json:"questions"`
}
