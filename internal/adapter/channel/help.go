package channel

const helpREPL = `Commands:

  /help               Show this help message
  /reset              Forget this session (history, loaded repository, pending proposals)
  /history            Show the stored turns of this session
  /status             Show the loaded repository and pending confirmations
  /quit, /exit        Leave RepoScribe

Start by sharing a repository URL, for example:

  Analyze https://github.com/owner/repo

then ask about its license, dependencies, code quality, setup steps,
error handling, tests or README. Some answers wait for your confirmation:
reply yes to accept, no to discard, or describe what to change.`
