// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datautil

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/gorse-io/cfeval/common/log"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

var (
	tempDir    string
	datasetDir string
	datasetURL = "https://cdn.gorse.io/datasets/%s.zip"
)

func init() {
	usr, err := user.Current()
	if err != nil {
		log.Logger().Fatal("failed to get user directory", zap.Error(err))
	}
	datasetDir = filepath.Join(usr.HomeDir, ".cfeval", "dataset")
	tempDir = filepath.Join(usr.HomeDir, ".cfeval", "temp")
}

// SetDirs overrides the directories used for downloaded and extracted datasets.
func SetDirs(dataset, temp string) {
	datasetDir = dataset
	tempDir = temp
}

// SetURL overrides the URL template of built-in datasets. The template takes the
// dataset name.
func SetURL(template string) {
	datasetURL = template
}

// DownloadAndUnzip downloads a built-in dataset and returns the directory it is
// extracted to. Nothing is downloaded if the directory exists.
func DownloadAndUnzip(ctx context.Context, name string) (string, error) {
	url := fmt.Sprintf(datasetURL, name)
	path := filepath.Join(datasetDir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zipFileName, err := downloadFromUrl(ctx, url, tempDir)
		if err != nil {
			return "", errors.Trace(err)
		}
		if _, err := unzip(zipFileName, datasetDir); err != nil {
			return "", errors.Trace(err)
		}
	}
	return path, nil
}

// downloadFromUrl downloads file from URL.
func downloadFromUrl(ctx context.Context, src, dst string) (string, error) {
	log.Logger().Info("download dataset", zap.String("source", src), zap.String("destination", dst))
	// Extract file name
	tokens := strings.Split(src, "/")
	fileName := filepath.Join(dst, tokens[len(tokens)-1])
	// Create file
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return fileName, errors.Trace(err)
	}
	output, err := os.Create(fileName)
	if err != nil {
		log.Logger().Error("failed to create file", zap.Error(err), zap.String("filename", fileName))
		return fileName, errors.Trace(err)
	}
	defer output.Close()
	// Download file
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fileName, errors.Trace(err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		log.Logger().Error("failed to download", zap.Error(err), zap.String("source", src))
		return fileName, errors.Trace(err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fileName, errors.NotFoundf("%s (%s)", src, response.Status)
	}
	// Save file
	reader := progressbar.NewReader(response.Body, progressbar.DefaultBytes(
		response.ContentLength,
		"Downloading "+filepath.Base(fileName),
	))
	_, err = io.Copy(output, &reader)
	if err != nil {
		log.Logger().Error("failed to download", zap.Error(err), zap.String("source", src))
		return fileName, errors.Trace(err)
	}
	return fileName, nil
}

// unzip zip file.
func unzip(src, dst string) ([]string, error) {
	var fileNames []string
	// Open zip file
	r, err := zip.OpenReader(src)
	if err != nil {
		return fileNames, errors.Trace(err)
	}
	defer r.Close()
	// Extract files
	for _, f := range r.File {
		// Store filename/path for returning and using later on
		filePath := filepath.Join(dst, f.Name)
		// Check for ZipSlip. More Info: http://bit.ly/2MsjAWE
		if !strings.HasPrefix(filePath, filepath.Clean(dst)+string(os.PathSeparator)) {
			return fileNames, errors.NotValidf("file path %s", filePath)
		}
		// Add filename
		fileNames = append(fileNames, filePath)
		if f.FileInfo().IsDir() {
			// Create folder
			if err = os.MkdirAll(filePath, os.ModePerm); err != nil {
				return fileNames, errors.Trace(err)
			}
			continue
		}
		if err = extract(f, filePath); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return fileNames, nil
}

func extract(f *zip.File, filePath string) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Trace(err)
	}
	defer rc.Close()
	// Create all folders
	if err = os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	outFile, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return errors.Trace(err)
	}
	if _, err = io.Copy(outFile, rc); err != nil {
		_ = outFile.Close()
		return errors.Trace(err)
	}
	return errors.Trace(outFile.Close())
}
