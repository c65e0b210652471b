/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"errors"

	"github.com/tomoncle/roster/database"
)

var (
	// ErrNotFound reports a lookup that matched nothing where a match is
	// required. Plain reads return a nil record instead.
	ErrNotFound = errors.New("repository: not found")

	// ErrInvalidArgument reports structurally invalid input, such as an empty
	// batch or a nil record.
	ErrInvalidArgument = errors.New("repository: invalid argument")
)

// StorageError is returned for every failure raised by the store.
type StorageError = database.StorageError
