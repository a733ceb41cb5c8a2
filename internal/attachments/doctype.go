// Copyright (c) 2026 John Earle
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

package attachments

import (
	"fmt"
	"path/filepath"
	"strings"
)

// InvoiceDocumentType is the document type treated as the primary invoice.
const InvoiceDocumentType = "pdf"

// documentTypes maps lowercased file extensions to document types.
var documentTypes = map[string]string{
	".pdf":  "pdf",
	".pdfa": "pdfa",
	".jpg":  "jpg",
	".jpeg": "jpeg",
	".png":  "png",
	".tiff": "tiff",
	".tif":  "tif",
	".bmp":  "bmp",
	".gif":  "gif",
	".pcx":  "pcx",
}

// UnsupportedTypeError is returned for files outside the allow-list.
type UnsupportedTypeError struct {
	FileName  string
	Extension string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("unsupported document type: %q has no extension", e.FileName)
	}
	return fmt.Sprintf("unsupported document type %q for %q", e.Extension, e.FileName)
}

// DocumentType maps a file name to its document type by extension.
func DocumentType(fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if docType, ok := documentTypes[ext]; ok {
		return docType, nil
	}
	return "", &UnsupportedTypeError{FileName: fileName, Extension: ext}
}

// IsPrimary reports whether a document is the message's invoice.
func IsPrimary(docType, contentType string) bool {
	return docType == InvoiceDocumentType && strings.Contains(strings.ToLower(contentType), "pdf")
}
