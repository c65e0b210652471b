// Package model declares the teams and players rows and the player/team
// projection. Struct tags are the schema description read by sqlgen and Bun.
package model
