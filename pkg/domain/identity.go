package domain

// Identity is the verified identity bound to a connection after a
// successful handshake. The authorized league and team ids are resolved
// once by the token verifier and scope every room join for the lifetime
// of the connection.
type Identity struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username"`
	LeagueIDs []string `json:"league_ids"`
	TeamIDs   []string `json:"team_ids"`
}

// CanAccessLeague reports whether the identity is authorized for a league.
func (i *Identity) CanAccessLeague(leagueID string) bool {
	for _, id := range i.LeagueIDs {
		if id == leagueID {
			return true
		}
	}
	return false
}

// CanAccessTeam reports whether the identity owns a team.
func (i *Identity) CanAccessTeam(teamID string) bool {
	for _, id := range i.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}
