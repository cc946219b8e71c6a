package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ridoystarlord/depmigrate/loader"
	"github.com/ridoystarlord/depmigrate/migration"
)

var numberPrefix = regexp.MustCompile(`^(\d+)_`)

var slugInvalid = regexp.MustCompile(`[^a-z0-9_]+`)

// NextName returns the next numbered migration name in an app directory,
// e.g. "0009_rename_analyzer". An empty slug becomes auto_<timestamp>.
func NextName(appDir, slug string, now time.Time) (string, error) {
	next := 1
	entries, err := os.ReadDir(appDir)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("reading app directory: %w", err)
	}
	for _, e := range entries {
		m := numberPrefix.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= next {
			next = n + 1
		}
	}

	slug = strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(slug), "_"), "_")
	if slug == "" {
		slug = "auto_" + now.Format("20060102_1504")
	}
	return fmt.Sprintf("%04d_%s", next, slug), nil
}

// WriteDescriptorFile saves a descriptor for app into <dir>/<app>/<name>.yaml
// and returns the path written.
func WriteDescriptorFile(dir, app, name string, dependencies []migration.Key, ops []migration.Operation) (string, error) {
	appDir := filepath.Join(dir, app)
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("creating migrations folder: %w", err)
	}

	f := loader.File{Dependencies: []string{}, Operations: []loader.OperationSpec{}}
	for _, d := range dependencies {
		f.Dependencies = append(f.Dependencies, d.String())
	}
	for _, op := range ops {
		f.Operations = append(f.Operations, loader.Spec(op))
	}

	body, err := yaml.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("marshalling migration: %w", err)
	}
	content := fmt.Sprintf("# Migration: %s.%s\n# Generated: %s\n", app, name, time.Now().UTC().Format(time.RFC3339))
	content += string(body)

	filename := filepath.Join(appDir, name+".yaml")
	if _, err := os.Stat(filename); err == nil {
		return "", fmt.Errorf("migration file %s already exists", filename)
	}
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing migration file: %w", err)
	}
	return filename, nil
}
