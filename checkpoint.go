package began

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Checkpointer Persists parameters of single network
type Checkpointer interface {
	Save(group *ParamGroup, path string) error
}

// GobCheckpointer Stores parameters as gob stream of named tensors
type GobCheckpointer struct{}

type checkpointEntry struct {
	Name  string
	Shape []int
	Data  []float64
}

type checkpointFile struct {
	Group  string
	Params []checkpointEntry
}

// Save Writes every tensor of the group into path
func (GobCheckpointer) Save(group *ParamGroup, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't create folder for '%s'", path))
	}
	content := checkpointFile{
		Group:  group.Name,
		Params: make([]checkpointEntry, 0, group.Len()),
	}
	names := group.Names()
	for i, value := range group.Values() {
		data, err := float64Data(value)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't read '%s'", names[i]))
		}
		content.Params = append(content.Params, checkpointEntry{
			Name:  names[i],
			Shape: value.Shape().Clone(),
			Data:  append([]float64(nil), data...),
		})
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't create file '%s'", path))
	}
	if err := gob.NewEncoder(f).Encode(content); err != nil {
		f.Close()
		return errors.Wrap(err, fmt.Sprintf("Can't encode parameters of '%s'", group.Name))
	}
	return f.Close()
}

// LoadParams Restores parameters of the group saved by GobCheckpointer. Count and shapes must match.
func LoadParams(group *ParamGroup, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't open file '%s'", path))
	}
	defer f.Close()
	content := checkpointFile{}
	if err := gob.NewDecoder(f).Decode(&content); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't decode file '%s'", path))
	}
	values := make([]*tensor.Dense, len(content.Params))
	for i, entry := range content.Params {
		values[i] = tensor.New(tensor.WithShape(entry.Shape...), tensor.WithBacking(entry.Data))
	}
	if err := group.set(values); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't restore '%s' from '%s'", group.Name, path))
	}
	return nil
}

// CheckpointPath Path of checkpoint for given network and epoch
func CheckpointPath(dir, network string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("weights_%s_epoch_%04d.gob", network, epoch))
}
