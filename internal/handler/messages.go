package handler

import (
	"fmt"
	"strings"

	"indexcheck-go/pkg/api"
	"indexcheck-go/pkg/checker"
)

const (
	msgNoURLs          = "Please send at least one valid URL."
	msgFileNoURLs      = "The file contains no valid URLs."
	msgListTooLong     = "The list is too long. Please split it into smaller batches."
	msgNotTextFile     = "Please upload a .txt file with one URL per line."
	msgDownloadFailed  = "Could not download the file. Please try again."
	msgBusy            = "A batch is already running for this chat. Wait for it to finish or send /cancel."
	msgCancelling      = "Cancelling the current batch..."
	msgCancelled       = "Batch cancelled. Remaining URLs were not checked."
	msgNothingToCancel = "Nothing to cancel."
	msgNothingToExport = "No results to export yet. Send some URLs first."
	msgUnknownCommand  = "Unknown command. Send /help for usage."
	msgInternalError   = "Something went wrong. Please try again later."
)

func helpText(textLimit int) string {
	return fmt.Sprintf(`Send me URLs, one per line, or upload a .txt file with one URL per line.
I will check whether each page is in the search index.

Up to %d results are answered as text, larger lists as a file.

/quota - remaining searches per API key
/export [csv|xlsx|pdf|text] - resend the last results as a file
/cancel - stop the running check`, textLimit)
}

func formatQuota(rows []api.CredentialQuota) string {
	if len(rows) == 0 {
		return "No API keys configured."
	}

	var b strings.Builder
	total := 0
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		if row.Err != nil {
			fmt.Fprintf(&b, "%d. %s: unavailable", i+1, row.Credential)
			continue
		}
		total += row.Quota
		fmt.Fprintf(&b, "%d. %s: %d searches left", i+1, row.Credential, row.Quota)
	}
	fmt.Fprintf(&b, "\nTotal: %d", total)
	return b.String()
}

func summaryLine(s checker.Summary) string {
	return fmt.Sprintf("%d URLs: %d indexed, %d not indexed, %d errors", s.Total, s.Indexed, s.NotIndexed, s.Unknown)
}
