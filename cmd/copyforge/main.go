// Copyforge turns a structured marketing brief into reviewed multi-channel
// copy (email, paid social, search ads).
//
// It runs a pipeline of plan, write, review, and analyze stages with
// deterministic grounding checks, optional LLM augmentation, retry budgets,
// and human-in-the-loop approval, and scores generated output against
// stored baselines.
//
// Usage:
//
//	# Generate copy from a brief
//	copyforge run --brief brief.txt --brand brand.txt --denylist denylist.txt
//
//	# Start the HTTP API server
//	copyforge serve --config config.yaml
//
//	# Score recent runs against a baseline run
//	copyforge eval --last 5 --baseline-run <run-id> --regression-check
//
//	# Approve or reject a suspended run
//	copyforge approve <run-id>
//	copyforge reject <run-id> --feedback "tone down the urgency"
//
//	# Show version information
//	copyforge version
package main

func main() {
	Execute()
}
