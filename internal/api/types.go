package api

type PublicSystemInfo struct {
	ServerName      string `json:"ServerName"`
	Version         string `json:"Version"`
	Id              string `json:"Id"`
	OperatingSystem string `json:"OperatingSystem"`
}

type ItemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

type Item struct {
	Id          string            `json:"Id"`
	Name        string            `json:"Name"`
	Type        string            `json:"Type"`
	SeriesName  string            `json:"SeriesName"`
	Path        string            `json:"Path"`
	ProviderIds map[string]string `json:"ProviderIds"`
}

// Label renders an item the way it is logged: "Series - Name" for items that
// belong to a series, plain name otherwise.
func (i Item) Label() string {
	if i.SeriesName != "" {
		return i.SeriesName + " - " + i.Name
	}
	return i.Name
}

// RefreshMode is the scan depth passed to the refresh endpoint.
type RefreshMode string

const (
	RefreshNone           RefreshMode = "None"
	RefreshValidationOnly RefreshMode = "ValidationOnly"
	RefreshDefault        RefreshMode = "Default"
	RefreshFullRefresh    RefreshMode = "FullRefresh"
)

// ParseRefreshMode validates a mode string against the values the server
// accepts. The empty string maps to FullRefresh.
func ParseRefreshMode(s string) (RefreshMode, error) {
	switch RefreshMode(s) {
	case RefreshNone, RefreshValidationOnly, RefreshDefault, RefreshFullRefresh:
		return RefreshMode(s), nil
	case "":
		return RefreshFullRefresh, nil
	}
	return "", &ModeError{Value: s}
}

type ModeError struct {
	Value string
}

func (e *ModeError) Error() string {
	return "invalid refresh mode: " + e.Value + " (want None, ValidationOnly, Default or FullRefresh)"
}
