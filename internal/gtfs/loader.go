package gtfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	routesFile = "routes.json"
	stopsFile  = "stops.json"
)

// Load reads the per-operator routes.json and stops.json from
// dir/<operator> and builds the lookup indexes.
func Load(dir, operator string) (*Dataset, error) {
	operatorDir := filepath.Join(dir, operator)

	ds := &Dataset{Operator: operator}

	if err := readJSON(filepath.Join(operatorDir, routesFile), &ds.Routes); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(operatorDir, stopsFile), &ds.Stops); err != nil {
		return nil, err
	}

	ds.buildIndexes()
	return ds, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// modTimes returns the modification times of the operator's dataset
// files, used by the cache to detect stale entries.
func modTimes(dir, operator string) (routes, stops int64, err error) {
	operatorDir := filepath.Join(dir, operator)

	ri, err := statDataset(filepath.Join(operatorDir, routesFile))
	if err != nil {
		return 0, 0, err
	}
	si, err := statDataset(filepath.Join(operatorDir, stopsFile))
	if err != nil {
		return 0, 0, err
	}
	return ri.ModTime().UnixNano(), si.ModTime().UnixNano(), nil
}

func statDataset(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return info, nil
}
