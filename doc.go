// Package roster stores teams and players in a relational database and adds
// players to existing teams by team name. App wires the database, the
// repositories and PlayersWithTeamsService together.
package roster
