package utils

import (
	"io"
	"mime/multipart"
	"os"

	"github.com/mudler/xlog"
)

// ReadMultipartFile reads an uploaded form file fully into memory.
func ReadMultipartFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		xlog.Debug("Audio file reading error", "filename", file.Filename, "error", err)
		return nil, err
	}
	return data, nil
}

// CreateTempFileFromBytes writes data to a new file in tempDir. The caller
// must call the returned cleanup func, which removes the file.
func CreateTempFileFromBytes(data []byte, tempDir string, tempPattern string) (string, func(), error) {
	outputFile, err := os.CreateTemp(tempDir, tempPattern)
	if err != nil {
		return "", func() {}, err
	}
	name := outputFile.Name()
	cleanup := func() {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			xlog.Debug("could not remove temporary file", "file", name, "error", err)
		}
	}

	if _, err := outputFile.Write(data); err != nil {
		outputFile.Close()
		cleanup()
		return "", func() {}, err
	}
	if err := outputFile.Close(); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return name, cleanup, nil
}
