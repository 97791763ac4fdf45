package fsfs_test

import (
	"fmt"
	"os"

	"github.com/nrednav/fsfs"
)

func ExampleFS_basic_usage() {
	path, err := os.CreateTemp("", "fsfs-example-*.img")
	if err != nil {
		panic(err)
	}
	path.Close()
	defer os.Remove(path.Name())

	fsys := fsfs.New()
	if err := fsys.Format(path.Name()); err != nil {
		panic(err)
	}
	if err := fsys.Mount(path.Name()); err != nil {
		panic(err)
	}
	defer fsys.Unmount()

	if err := fsys.Create("newfile.txt"); err != nil {
		panic(err)
	}
	fd, err := fsys.Open("newfile.txt")
	if err != nil {
		panic(err)
	}
	if _, err := fsys.Write(fd, []byte("Hello, World!")); err != nil {
		panic(err)
	}
	if err := fsys.Close(fd); err != nil {
		panic(err)
	}

	// Read back the file.
	fd, err = fsys.Open("newfile.txt")
	if err != nil {
		panic(err)
	}
	size, err := fsys.Size(fd)
	if err != nil {
		panic(err)
	}
	buf := make([]byte, size)
	if _, err := fsys.Read(fd, buf); err != nil {
		panic(err)
	}
	fsys.Close(fd)

	fmt.Println(string(buf))
	// Output:
	// Hello, World!
}
