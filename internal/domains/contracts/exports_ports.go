package contracts

import contractports "remote-ui/go-backend/internal/domains/contracts/ports"

type NotificationEvent = contractports.NotificationEvent
type EventPublisher = contractports.EventPublisher
type NotificationSource = contractports.NotificationSource
type NotificationBus = contractports.NotificationBus
