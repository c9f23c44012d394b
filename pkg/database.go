package simflow

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

type ChannelMappingEntry struct {
	DetectorName string `db:"DetectorName"`
	System       string `db:"System"`
	DetType      string `db:"DetType"`
	StringID     int32  `db:"StringID"`
	Position     int32  `db:"Position"`
	RawID        int32  `db:"RawID"`
	Usability    string `db:"Usability"`
}

// GetChannelMapFromDB reads the channel map valid at the given timestamp
// from the ChannelMapping table.
func GetChannelMapFromDB(db *sqlx.DB, timestamp string) (ChannelMap, error) {
	query := "SELECT DetectorName, System, DetType, StringID, Position, RawID, Usability FROM ChannelMapping WHERE ValidFrom <= '%s' AND ValidTo >= '%s' ORDER BY RawID"
	query = fmt.Sprintf(query, timestamp, timestamp)

	if configuration.Verbosity > 0 {
		logger.Info("Channel mapping read from DB", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}

	rows, err := db.Queryx(query)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}

	chmap := make(ChannelMap)
	for rows.Next() {
		result := ChannelMappingEntry{}
		err := rows.StructScan(&result)
		if err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return nil, errMessage
		}
		chmap[result.DetectorName] = ChannelEntry{
			Name:     result.DetectorName,
			System:   result.System,
			Type:     result.DetType,
			Location: ChannelLocation{String: result.StringID, Position: result.Position},
			DAQ:      ChannelDAQ{RawID: result.RawID},
			Analysis: ChannelAnalysis{Usability: result.Usability},
		}
	}
	return chmap, nil
}

type AnalysisRunEntry struct {
	Period string `db:"Period"`
	Run    string `db:"Run"`
}

// GetAnalysisRunsFromDB reads the analysis-run registry from the
// AnalysisRuns table.
func GetAnalysisRunsFromDB(db *sqlx.DB) (map[string][]string, error) {
	query := "SELECT Period, Run FROM AnalysisRuns ORDER BY Period, Run"

	if configuration.Verbosity > 0 {
		logger.Info("Analysis runs read from DB", "database")
	}

	rows, err := db.Queryx(query)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}

	runs := make(map[string][]string)
	for rows.Next() {
		result := AnalysisRunEntry{}
		err := rows.StructScan(&result)
		if err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return nil, errMessage
		}
		runs[result.Period] = append(runs[result.Period], result.Run)
	}
	return runs, nil
}
