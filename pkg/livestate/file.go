package livestate

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/function61/gokit/atomicfilewrite"
)

const (
	filePrefix = ".liveedit-"
)

// one small file per key in dir, e.g. /tmp/.liveedit-version-token
type fileStore struct {
	dir string
}

func NewFile(dir string) *fileStore {
	return &fileStore{dir}
}

func (f *fileStore) Get(key string) ([]byte, bool, error) {
	value, err := ioutil.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return value, true, nil
}

// atomic so a crash never leaves a half-written path list behind
func (f *fileStore) Put(key string, value []byte) error {
	return atomicfilewrite.Write(f.path(key), func(writer io.Writer) error {
		_, err := io.Copy(writer, bytes.NewReader(value))
		return err
	})
}

func (f *fileStore) path(key string) string {
	return filepath.Join(f.dir, filePrefix+key)
}
