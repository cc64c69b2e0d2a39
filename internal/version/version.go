package version

import "fmt"

// Значения подставляются при сборке:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/storefront/internal/version.version=v1.2.0"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает сборку бинаря.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Current возвращает сведения о текущей сборке.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// GetVersion returns the semantic version of the build.
func GetVersion() string { return version }

// GetCommit returns the git commit of the build.
func GetCommit() string { return commit }

func (b Build) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}

// UserAgent — значение user-agent для клиентов storefront (например, catalogctl/v1.2.0).
func UserAgent(component string) string {
	return component + "/" + version
}
