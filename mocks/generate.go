package mocks

//go:generate mockgen -destination=./mock_strategy.go -package=mocks github.com/rxtech-lab/argo-trader/internal/strategy Strategy
//go:generate mockgen -destination=./mock_journal.go -package=mocks github.com/rxtech-lab/argo-trader/internal/journal Journal
//go:generate mockgen -destination=./mock_notifier.go -package=mocks github.com/rxtech-lab/argo-trader/internal/notify Notifier
