package syncer

import (
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/mcpherson-lab/pubsync/internal/domain"
	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
)

// Copier materializes accepted entries under the publications tree. All
// writes go to a hidden temporary directory first and are renamed into
// place in one step, so a crash never leaves a half-written entry visible
// to the existence check of a later run.
type Copier struct {
	fs      billy.Filesystem
	baseDir string
}

// NewCopier creates a copier writing under baseDir of fs
func NewCopier(fs billy.Filesystem, baseDir string) *Copier {
	return &Copier{fs: fs, baseDir: baseDir}
}

// Exists reports whether a local entry directory is already present
func (c *Copier) Exists(localName string) bool {
	_, err := c.fs.Stat(path.Join(c.baseDir, localName))
	return err == nil
}

// Materialize writes the entry's content file and assets into
// {baseDir}/{localName}. An existing directory is replaced (forced
// re-sync); the swap happens after the new content is fully written.
func (c *Copier) Materialize(localName, indexName string, content []byte, assets []domain.RemoteAsset) error {
	final := path.Join(c.baseDir, localName)
	tmp := path.Join(c.baseDir, ".tmp-"+localName)

	// Stale leftovers from a crashed run
	_ = util.RemoveAll(c.fs, tmp)

	if err := c.write(tmp, final, indexName, content, assets); err != nil {
		_ = util.RemoveAll(c.fs, tmp)
		return apperrors.NewFilesystemError("writing "+final, err)
	}
	return nil
}

func (c *Copier) write(tmp, final, indexName string, content []byte, assets []domain.RemoteAsset) error {
	if err := c.fs.MkdirAll(tmp, 0o755); err != nil {
		return err
	}
	if err := c.writeFile(path.Join(tmp, indexName), content); err != nil {
		return err
	}
	for _, a := range assets {
		if a.Data == nil {
			continue
		}
		if err := c.writeFile(path.Join(tmp, a.Name), a.Data); err != nil {
			return err
		}
	}

	if _, err := c.fs.Stat(final); err == nil {
		if err := util.RemoveAll(c.fs, final); err != nil {
			return err
		}
	}
	return c.fs.Rename(tmp, final)
}

func (c *Copier) writeFile(name string, data []byte) error {
	f, err := c.fs.Create(name)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
