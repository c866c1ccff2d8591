// Copyright 2024 GVFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mount

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RepoRegistration is one registered enlistment. The supervisor treats the
// registry as read-only; registration changes go through the CLI.
type RepoRegistration struct {
	EnlistmentRoot string `yaml:"enlistment_root"`
	OwnerSID       string `yaml:"owner_sid"`
	IsActive       bool   `yaml:"active"`
}

// Registry lists registered repositories.
type Registry interface {
	// TryGetActiveReposForUser returns the active registrations owned by
	// userSID.
	TryGetActiveReposForUser(userSID string) ([]RepoRegistration, error)
}

// registryFile is the YAML document stored on disk.
type registryFile struct {
	Repos []RepoRegistration `yaml:"repos"`
}

// FileRegistry is a Registry backed by a YAML file in the config
// directory. A missing file reads as an empty registry.
type FileRegistry struct {
	path string
}

// NewFileRegistry creates a registry over the YAML file at path.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

func (r *FileRegistry) load() (*registryFile, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return &registryFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var doc registryFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	return &doc, nil
}

func (r *FileRegistry) save(doc *registryFile) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return nil
}

// TryGetActiveReposForUser returns the active registrations owned by
// userSID.
func (r *FileRegistry) TryGetActiveReposForUser(userSID string) ([]RepoRegistration, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	var repos []RepoRegistration
	for _, repo := range doc.Repos {
		if repo.IsActive && repo.OwnerSID == userSID {
			repos = append(repos, repo)
		}
	}
	return repos, nil
}

// List returns every registration, active or not.
func (r *FileRegistry) List() ([]RepoRegistration, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return doc.Repos, nil
}

// Add registers an enlistment for the given owner, replacing any existing
// registration for the same root.
func (r *FileRegistry) Add(enlistmentRoot, ownerSID string) error {
	doc, err := r.load()
	if err != nil {
		return err
	}

	registration := RepoRegistration{
		EnlistmentRoot: enlistmentRoot,
		OwnerSID:       ownerSID,
		IsActive:       true,
	}
	for i, repo := range doc.Repos {
		if repo.EnlistmentRoot == enlistmentRoot {
			doc.Repos[i] = registration
			return r.save(doc)
		}
	}
	doc.Repos = append(doc.Repos, registration)
	return r.save(doc)
}

// Remove deletes the registration for enlistmentRoot. Removing an absent
// root is not an error.
func (r *FileRegistry) Remove(enlistmentRoot string) error {
	doc, err := r.load()
	if err != nil {
		return err
	}

	kept := doc.Repos[:0]
	for _, repo := range doc.Repos {
		if repo.EnlistmentRoot != enlistmentRoot {
			kept = append(kept, repo)
		}
	}
	doc.Repos = kept
	return r.save(doc)
}
