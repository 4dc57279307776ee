package inspect

// coordinate owns the run's counters. It is the only writer of stage state,
// so every stage's Used is monotonic.
func coordinate(run *Run, updates <-chan updateKind, projects, step int) {
	run.emit(Event{Kind: EventStart})
	stage := func(s Stage, all, used int) {
		run.emit(Event{Kind: EventStage, Stage: s, State: State{All: all, Used: used}})
	}

	var found, counted, finished int
	for u := range updates {
		switch u {
		case fileFound:
			found++
			if found%step == 0 {
				stage(StageFetchingFiles, found, found)
			}
		case discoveryDone:
			if found%step != 0 || found == 0 {
				stage(StageFetchingFiles, found, found)
			}
			stage(StageFetchingLines, found, found)
		case fileCounted:
			counted++
			if counted%step == 0 || counted == found {
				stage(StageProgress, found, counted)
			}
		case projectDone:
			finished++
			stage(StageProgress2, projects, finished)
		}
	}
}
