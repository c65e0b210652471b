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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequestDefaults(t *testing.T) {
	p := NewDefaultPageRequest(0, 0)
	assert.Equal(t, DefaultPage, p.GetPage())
	assert.Equal(t, DefaultPageSize, p.GetPageSize())
	assert.Equal(t, 0, p.GetOffset())
	assert.Nil(t, p.GetFilter())

	p = NewPageRequestWithOrders(3, 20, "name DESC")
	assert.Equal(t, 40, p.GetOffset())
	assert.Equal(t, []string{"name DESC"}, p.GetOrders())

	assert.Equal(t, MaxPageSize, NewDefaultPageRequest(1, MaxPageSize+1).GetPageSize())
}

func TestQueryFilterCondition(t *testing.T) {
	var nilFilter *QueryFilter
	where, args := nilFilter.Condition()
	assert.Empty(t, where)
	assert.Nil(t, args)

	where, args = NewQueryFilter("points > ?", 10).Condition()
	assert.Equal(t, "points > ?", where)
	assert.Equal(t, []any{10}, args)
}

func TestPaginationPages(t *testing.T) {
	p := NewDefaultPagination[int](1, 10)
	assert.Equal(t, 0, p.Pages())
	assert.False(t, p.HasNext())

	p.Total = 25
	assert.Equal(t, 3, p.Pages())
	assert.True(t, p.HasNext())

	p.Page = 3
	assert.False(t, p.HasNext())
}
