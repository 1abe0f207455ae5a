package channel

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/moffa90/go-daplink/protocol"
	"github.com/moffa90/go-daplink/report"
)

const persistTestDir = "persist_test_dir"

// CheckFilesystem checks that the drive is usable and that the files the
// device publishes are well formed: the drive keeps a created directory,
// every file passes protocol.CheckContents and DETAILS.TXT is valid for
// this device. Problems are recorded in parent; only I/O errors on the
// drive itself are returned.
func (c *Channel) CheckFilesystem(parent *report.Test) error {
	c.TestFS(parent)
	if err := c.TestFSContents(parent); err != nil {
		return err
	}
	c.TestDetails(parent)
	return nil
}

// TestFS checks that a directory created on the drive persists.
func (c *Channel) TestFS(parent *report.Test) {
	t := subtest(parent, "test_fs")
	path := c.Path(persistTestDir)
	if err := c.fs.Mkdir(path, 0o755); err != nil {
		t.Info("cache check exception %s", err)
	}
	if ok, _ := afero.DirExists(c.fs, path); !ok {
		t.Failure("Disk corrupt, %s not persisted", persistTestDir)
		return
	}
	if err := c.fs.Remove(path); err != nil {
		t.Warning("could not remove %s: %s", persistTestDir, err)
	}
}

// TestFSContents checks the content format of every top level file.
func (c *Channel) TestFSContents(parent *report.Test) error {
	t := subtest(parent, "test_fs_contents")
	infos, err := afero.ReadDir(c.fs, c.mountPoint)
	if err != nil {
		return fmt.Errorf("list %s: %w", c.mountPoint, err)
	}
	for _, fi := range infos {
		path := filepath.Join(c.mountPoint, fi.Name())
		if fi.IsDir() {
			t.Info("Skipping non file item %s", path)
			continue
		}
		if protocol.IgnoredFile(fi.Name()) {
			continue
		}
		data, err := afero.ReadFile(c.fs, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		issue := protocol.CheckContents(data)
		switch {
		case issue == nil:
			t.Info("File %s valid", path)
		case issue.Level == protocol.LevelFailure:
			t.Failure("File %s: %s", path, issue.Reason)
		default:
			t.Warning("File %s: %s", path, issue.Reason)
		}
	}
	return nil
}

// TestDetails checks that DETAILS.TXT has every required field in the
// right format and matches the unique id of the device.
func (c *Channel) TestDetails(parent *report.Test) {
	t := subtest(parent, "test_details_txt")
	path, ok := findFile(c.fs, c.mountPoint, protocol.FileDetails)
	if !ok {
		t.Failure("Could not parse details.txt")
		return
	}
	f, err := c.fs.Open(path)
	if err != nil {
		t.Failure("Could not parse details.txt: %s", err)
		return
	}
	defer f.Close()

	kvp, defects, err := protocol.ParseKVP(f, protocol.FileDetails)
	if err != nil || len(kvp) == 0 {
		t.Failure("Could not parse details.txt")
		return
	}
	for _, d := range defects {
		t.Failure("%s", d)
	}
	for _, err := range protocol.ValidateDetails(kvp, c.uniqueID) {
		t.Failure("%s", err)
	}
}
