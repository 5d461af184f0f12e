package capture

// Cost is the credit price of transcribing durationSeconds of audio: one
// credit per started minute plus one, never less than two.
func Cost(durationSeconds int) int {
	minutes := (durationSeconds + 59) / 60
	if minutes < 1 {
		minutes = 1
	}
	return minutes + 1
}
