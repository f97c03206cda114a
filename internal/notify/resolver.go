// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package notify

import "strings"

// Resolver maps an uploading principal to an email address.
type Resolver struct {
	addresses map[string]string
	fallback  string
}

// NewResolver builds a Resolver from user name to address. Principals
// that resolve to nothing are sent to fallback.
func NewResolver(addresses map[string]string, fallback string) *Resolver {
	return &Resolver{addresses: addresses, fallback: fallback}
}

// Resolve accepts raw principal ids ("AWS:AIDAEXAMPLE:jane"), bare user
// names and email addresses.
func (r *Resolver) Resolve(principalID string) string {
	principalID = strings.TrimSpace(principalID)
	if addr, ok := r.addresses[principalID]; ok {
		return addr
	}
	user := principalID
	if i := strings.LastIndex(user, ":"); i >= 0 {
		user = user[i+1:]
	}
	if addr, ok := r.addresses[user]; ok {
		return addr
	}
	if strings.Contains(user, "@") {
		return user
	}
	return r.fallback
}
