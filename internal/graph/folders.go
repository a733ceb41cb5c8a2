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

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// ResolveFolder returns the ID of the folder whose display name equals
// name exactly. Top-level folders are searched first, then the inbox's
// child folders.
func (c *Client) ResolveFolder(ctx context.Context, mailbox, name string) (string, error) {
	slog.Info("resolving mail folder ID", "user", mailbox, "folder", name)

	base := fmt.Sprintf("%s/users/%s/mailFolders", c.graphBaseURL, url.PathEscape(mailbox))

	scopes := []struct {
		label string
		url   string
	}{
		{label: "top level", url: base},
		{label: "inbox child folders", url: base + "/inbox/childFolders"},
	}

	for _, scope := range scopes {
		id, err := c.findFolder(ctx, scope.url, name)
		if err != nil {
			return "", fmt.Errorf("list %s folders: %w", scope.label, err)
		}
		if id != "" {
			slog.Info("folder found",
				"folder", name,
				"folder_id", id,
				"scope", scope.label,
			)
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: %q in mailbox %s", ErrFolderNotFound, name, mailbox)
}

// findFolder pages through a folder collection looking for name.
func (c *Client) findFolder(ctx context.Context, listURL, name string) (string, error) {
	for nextURL := listURL; nextURL != ""; {
		var page foldersResponse
		if err := c.getJSON(ctx, nextURL, &page); err != nil {
			return "", err
		}

		for _, f := range page.Value {
			if f.DisplayName == name {
				return f.ID, nil
			}
		}

		nextURL = page.NextLink
	}
	return "", nil
}
